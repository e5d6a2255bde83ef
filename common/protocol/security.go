package protocol

import "github.com/xtls/vmess-core/common/errors"

// SecurityType selects the AEAD construction used for chunk payload
// encryption, encoded in the low nibble of a request header's security byte.
type SecurityType byte

const (
	SecurityTypeAES128GCM        SecurityType = 0x03
	SecurityTypeChacha20Poly1305 SecurityType = 0x04
	SecurityTypeNone             SecurityType = 0x05
)

// IsValid reports whether s is one of the three security kinds this
// core implements.
func (s SecurityType) IsValid() bool {
	switch s {
	case SecurityTypeAES128GCM, SecurityTypeChacha20Poly1305, SecurityTypeNone:
		return true
	default:
		return false
	}
}

// Overhead returns the per-chunk AEAD tag overhead in bytes, 0 for
// SecurityTypeNone.
func (s SecurityType) Overhead() int {
	switch s {
	case SecurityTypeAES128GCM, SecurityTypeChacha20Poly1305:
		return 16
	default:
		return 0
	}
}

func SecurityTypeFromByte(b byte) (SecurityType, error) {
	s := SecurityType(b)
	if !s.IsValid() {
		return 0, errors.New("unsupported security type: ", b).WithKind(errors.KindUnsupported)
	}
	return s, nil
}
