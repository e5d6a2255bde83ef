package encoding

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	vcrypto "github.com/xtls/vmess-core/common/crypto"
)

func TestHashTimestampIsDeterministic(t *testing.T) {
	a := hashTimestamp(1700000000)
	b := hashTimestamp(1700000000)
	require.Equal(t, a, b)
}

func TestHashTimestampDiffersAcrossSeconds(t *testing.T) {
	a := hashTimestamp(1700000000)
	b := hashTimestamp(1700000001)
	require.NotEqual(t, a, b)
}

func TestLegacyAuthIsKeyedByRawUUIDNotCmdKey(t *testing.T) {
	id := fixedTestID()

	gotByUUID := legacyAuth(id.Bytes(), 1700000000)

	var tsBytes [8]byte
	binary.BigEndian.PutUint64(tsBytes[:], uint64(1700000000))
	h := vcrypto.HMACMD5(id.CmdKey())
	h.Write(tsBytes[:])
	wouldBeByCmdKey := h.Sum(nil)

	require.NotEqual(t, wouldBeByCmdKey, gotByUUID)
}

func TestSealLegacyRequestHeaderRoundTrips(t *testing.T) {
	id := fixedTestID()
	plaintext := []byte("cleartext header bytes, length irrelevant here")

	sealed := sealLegacyRequestHeader(id.Bytes(), id.CmdKey(), 1700000000, plaintext)
	require.Equal(t, 16+len(plaintext), len(sealed))

	auth := sealed[:16]
	encrypted := append([]byte(nil), sealed[16:]...)

	require.Equal(t, legacyAuth(id.Bytes(), 1700000000), auth)

	iv := hashTimestamp(1700000000)
	vcrypto.CFBDecrypt(id.CmdKey(), iv[:], encrypted)
	require.Equal(t, plaintext, encrypted)
}
