package cipher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtls/vmess-core/common/errors"
	"github.com/xtls/vmess-core/common/protocol"
)

func TestChunkCipherAES128GCMRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
		iv[i] = byte(i + 1)
	}

	sealer, err := NewChunkCipher(protocol.SecurityTypeAES128GCM, key, iv)
	require.NoError(t, err)
	opener, err := NewChunkCipher(protocol.SecurityTypeAES128GCM, key, iv)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		plaintext := []byte("chunk payload number")
		sealed, err := sealer.Seal(nil, plaintext)
		require.NoError(t, err)
		require.Equal(t, len(plaintext)+sealer.Overhead(), len(sealed))

		opened, err := opener.Open(nil, sealed)
		require.NoError(t, err)
		require.Equal(t, plaintext, opened)
	}
}

func TestChunkCipherChacha20Poly1305RoundTrip(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)
	for i := range key {
		key[i] = byte(i * 3)
		iv[i] = byte(i * 5)
	}

	sealer, err := NewChunkCipher(protocol.SecurityTypeChacha20Poly1305, key, iv)
	require.NoError(t, err)
	opener, err := NewChunkCipher(protocol.SecurityTypeChacha20Poly1305, key, iv)
	require.NoError(t, err)

	plaintext := []byte("another chunk")
	sealed, err := sealer.Seal(nil, plaintext)
	require.NoError(t, err)
	opened, err := opener.Open(nil, sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestChunkCipherNoneIsPassthrough(t *testing.T) {
	c, err := NewChunkCipher(protocol.SecurityTypeNone, nil, make([]byte, 16))
	require.NoError(t, err)
	require.Equal(t, 0, c.Overhead())

	plaintext := []byte("raw bytes")
	sealed, err := c.Seal(nil, plaintext)
	require.NoError(t, err)
	require.Equal(t, plaintext, sealed)
}

func TestChunkCipherNonceAdvancesPerChunk(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)

	sealer, err := NewChunkCipher(protocol.SecurityTypeAES128GCM, key, iv)
	require.NoError(t, err)

	first, err := sealer.Seal(nil, []byte("same plaintext!!"))
	require.NoError(t, err)
	second, err := sealer.Seal(nil, []byte("same plaintext!!"))
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestChunkCipherOpenRejectsTamperedCiphertext(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)

	sealer, err := NewChunkCipher(protocol.SecurityTypeAES128GCM, key, iv)
	require.NoError(t, err)
	opener, err := NewChunkCipher(protocol.SecurityTypeAES128GCM, key, iv)
	require.NoError(t, err)

	sealed, err := sealer.Seal(nil, []byte("chunk"))
	require.NoError(t, err)
	sealed[0] ^= 0xFF

	_, err = opener.Open(nil, sealed)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.InvalidData)
}

func TestChunkCipherSealRefusesToWrapNonceCounter(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)

	sealer, err := NewChunkCipher(protocol.SecurityTypeAES128GCM, key, iv)
	require.NoError(t, err)
	sealer.sent = maxChunksPerDirection

	_, err = sealer.Seal(nil, []byte("one chunk too many"))
	require.Error(t, err)
}

func TestChunkCipherOpenRefusesToWrapNonceCounter(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)

	opener, err := NewChunkCipher(protocol.SecurityTypeAES128GCM, key, iv)
	require.NoError(t, err)
	opener.sent = maxChunksPerDirection

	_, err = opener.Open(nil, make([]byte, 32))
	require.Error(t, err)
}

func TestChunkCipherSealAllowsExactlyMaxChunksThenRefuses(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)

	sealer, err := NewChunkCipher(protocol.SecurityTypeAES128GCM, key, iv)
	require.NoError(t, err)
	sealer.sent = maxChunksPerDirection - 1

	_, err = sealer.Seal(nil, []byte("last allowed chunk"))
	require.NoError(t, err)

	_, err = sealer.Seal(nil, []byte("first refused chunk"))
	require.Error(t, err)
}
