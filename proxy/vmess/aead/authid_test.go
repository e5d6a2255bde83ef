package aead

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xtls/vmess-core/common/crypto"
)

func TestCreateAuthIDIsDeterministicUnderFixedInputs(t *testing.T) {
	cmdKey := make([]byte, 16)
	rnd := crypto.FixedRand{Seed: []byte{1, 2, 3, 4}}
	now := time.Unix(1700000000, 0)

	a := CreateAuthID(cmdKey, now, rnd)
	b := CreateAuthID(cmdKey, now, rnd)
	require.Equal(t, a, b)
}

func TestCreateAuthIDChangesWithTimestamp(t *testing.T) {
	cmdKey := make([]byte, 16)
	rnd := crypto.FixedRand{Seed: []byte{1, 2, 3, 4}}

	a := CreateAuthID(cmdKey, time.Unix(1700000000, 0), rnd)
	b := CreateAuthID(cmdKey, time.Unix(1700000001, 0), rnd)
	require.NotEqual(t, a, b)
}

func TestSealRequestHeaderRoundTrips(t *testing.T) {
	cmdKey := make([]byte, 16)
	for i := range cmdKey {
		cmdKey[i] = byte(i)
	}
	rnd := crypto.FixedRand{Seed: []byte{9, 8, 7, 6, 5}}
	now := time.Unix(1700000000, 0)

	authID := CreateAuthID(cmdKey, now, rnd)
	plaintext := []byte("hello vmess request header")

	sealed := SealRequestHeader(cmdKey, authID, plaintext, rnd)

	require.Equal(t, 16+18+len(plaintext)+16+8, len(sealed))

	gotAuthID := sealed[:16]
	require.Equal(t, authID[:], gotAuthID)

	connectionNonce := sealed[len(sealed)-8:]
	sealedLen := sealed[16 : 16+18]
	sealedPayload := sealed[16+18 : len(sealed)-8]

	n, err := OpenRequestHeaderLen(cmdKey, authID, sealedLen, connectionNonce)
	require.NoError(t, err)
	require.Equal(t, len(plaintext), n)

	got, err := OpenRequestHeaderPayload(cmdKey, authID, sealedPayload, connectionNonce)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestOpenRequestHeaderLenRejectsTampering(t *testing.T) {
	cmdKey := make([]byte, 16)
	rnd := crypto.FixedRand{Seed: []byte{1}}
	now := time.Unix(1700000000, 0)
	authID := CreateAuthID(cmdKey, now, rnd)

	sealed := SealRequestHeader(cmdKey, authID, []byte("payload"), rnd)
	sealedLen := append([]byte(nil), sealed[16:16+18]...)
	sealedLen[0] ^= 0xFF
	connectionNonce := sealed[len(sealed)-8:]

	_, err := OpenRequestHeaderLen(cmdKey, authID, sealedLen, connectionNonce)
	require.Error(t, err)
}
