// Package cipher builds the per-chunk AEAD construction a connection's
// security kind selects, and frames payload bytes into counter-nonced
// chunks over it.
package cipher

import (
	stdcipher "crypto/cipher"
	"crypto/md5"

	vcrypto "github.com/xtls/vmess-core/common/crypto"
	"github.com/xtls/vmess-core/common/errors"
	"github.com/xtls/vmess-core/common/protocol"
	"golang.org/x/crypto/chacha20poly1305"
)

// NewAEAD builds the cipher.AEAD for the given security kind and
// 16-byte body key. SecurityTypeNone has no AEAD; callers must check
// for that case themselves before calling NewAEAD.
func NewAEAD(security protocol.SecurityType, bodyKey []byte) (stdcipher.AEAD, error) {
	switch security {
	case protocol.SecurityTypeAES128GCM:
		return vcrypto.NewAesGcm(bodyKey), nil
	case protocol.SecurityTypeChacha20Poly1305:
		return chacha20poly1305.New(expandChacha20Poly1305Key(bodyKey))
	default:
		return nil, errors.New("unsupported security type for AEAD framing: ", security).WithKind(errors.KindUnsupported)
	}
}

// expandChacha20Poly1305Key stretches a 16-byte vmess body key into
// the 32-byte key chacha20poly1305.New requires, by double-MD5: the
// first half is md5(key), the second half is md5(first half).
func expandChacha20Poly1305Key(key []byte) []byte {
	out := make([]byte, 32)
	first := md5.Sum(key)
	copy(out, first[:])
	second := md5.Sum(out[:16])
	copy(out[16:], second[:])
	return out
}
