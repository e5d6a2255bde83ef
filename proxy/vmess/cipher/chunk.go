package cipher

import (
	"encoding/binary"

	stdcipher "crypto/cipher"

	"github.com/xtls/vmess-core/common/errors"
	"github.com/xtls/vmess-core/common/protocol"
	"github.com/xtls/vmess-core/proxy/vmess"
)

// maxChunksPerDirection is the hard per-direction chunk ceiling: the
// nonce counter is 16 bits wide, so the 65537th chunk would have to
// reuse a counter value already used for chunk 1 under the same key.
// Wrap-around must never happen, so Seal/Open refuse to run past it.
const maxChunksPerDirection = 1 << 16

// ChunkCipher seals and opens one direction of a connection's
// chunked AEAD body stream. Its nonce is the connection's 16-byte body
// IV with the first two bytes replaced by a monotonically increasing
// big-endian chunk counter; AEAD.NonceSize() bytes of that (12 for both
// AES-128-GCM and ChaCha20-Poly1305) are used per chunk.
type ChunkCipher struct {
	aead     stdcipher.AEAD
	security protocol.SecurityType
	nonce    [16]byte
	counter  uint16
	sent     int
}

// NewChunkCipher builds a ChunkCipher for security using bodyKey/bodyIV.
// SecurityTypeNone yields a cipher whose Seal/Open are no-ops.
func NewChunkCipher(security protocol.SecurityType, bodyKey, bodyIV []byte) (*ChunkCipher, error) {
	c := &ChunkCipher{security: security}
	copy(c.nonce[:], bodyIV)

	if security == protocol.SecurityTypeNone {
		return c, nil
	}

	aead, err := NewAEAD(security, bodyKey)
	if err != nil {
		return nil, err
	}
	c.aead = aead
	return c, nil
}

// Overhead is the per-chunk AEAD tag size, 0 for SecurityTypeNone.
func (c *ChunkCipher) Overhead() int {
	return c.security.Overhead()
}

// nextNonce returns an error instead of a nonce once the counter would
// wrap: reusing a (key, nonce) pair under GCM/ChaCha20-Poly1305 is a
// cryptographic break, not just a protocol violation, so this must
// never silently roll over to 0 again.
func (c *ChunkCipher) nextNonce() ([]byte, error) {
	if c.sent >= maxChunksPerDirection {
		return nil, errors.New("chunk counter exhausted: more than ", maxChunksPerDirection, " chunks sent on one direction").AtError()
	}
	binary.BigEndian.PutUint16(c.nonce[:2], c.counter)
	c.counter++
	c.sent++
	return c.nonce[:c.aead.NonceSize()], nil
}

// Seal encrypts plaintext, appending ciphertext+tag to dst and
// advancing the chunk counter. For SecurityTypeNone it just appends
// plaintext unchanged. Returns an error once the per-direction chunk
// ceiling is reached instead of reusing a nonce.
func (c *ChunkCipher) Seal(dst, plaintext []byte) ([]byte, error) {
	if c.security == protocol.SecurityTypeNone {
		return append(dst, plaintext...), nil
	}
	nonce, err := c.nextNonce()
	if err != nil {
		return nil, err
	}
	return c.aead.Seal(dst, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts ciphertext, appending plaintext to
// dst and advancing the chunk counter. For SecurityTypeNone it just
// appends ciphertext unchanged. Returns an error once the per-direction
// chunk ceiling is reached instead of reusing a nonce.
func (c *ChunkCipher) Open(dst, ciphertext []byte) ([]byte, error) {
	if c.security == protocol.SecurityTypeNone {
		return append(dst, ciphertext...), nil
	}
	nonce, err := c.nextNonce()
	if err != nil {
		return nil, err
	}
	out, err := c.aead.Open(dst, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("failed to open chunk").Base(err).WithKind(errors.KindInvalidData)
	}
	return out, nil
}

// MaxChunkSize is the largest sealed chunk (ciphertext plus AEAD tag)
// a single chunk length field may announce.
const MaxChunkSize = vmess.MaxChunkSize
