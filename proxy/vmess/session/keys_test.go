package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	vcrypto "github.com/xtls/vmess-core/common/crypto"
)

func TestNewKeysAEADDerivesResponseKeysBySHA256Truncation(t *testing.T) {
	rnd := vcrypto.FixedRand{Seed: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	k := NewKeys(rnd, true)

	want := vcrypto.SHA256Sum(k.RequestBodyKey[:])
	require.Equal(t, want[:16], k.ResponseBodyKey[:])

	wantIV := vcrypto.SHA256Sum(k.RequestBodyIV[:])
	require.Equal(t, wantIV[:16], k.ResponseBodyIV[:])
}

func TestNewKeysLegacyDerivesResponseKeysByMD5(t *testing.T) {
	rnd := vcrypto.FixedRand{Seed: []byte{9, 8, 7, 6, 5, 4, 3, 2, 1}}
	k := NewKeys(rnd, false)

	want := vcrypto.MD5Sum(k.RequestBodyKey[:])
	require.Equal(t, want[:], k.ResponseBodyKey[:])

	wantIV := vcrypto.MD5Sum(k.RequestBodyIV[:])
	require.Equal(t, wantIV[:], k.ResponseBodyIV[:])
}

func TestNewKeysIsDeterministicUnderFixedRand(t *testing.T) {
	rnd := vcrypto.FixedRand{Seed: []byte{1, 2, 3}}
	a := NewKeys(rnd, true)
	b := NewKeys(rnd, true)
	require.Equal(t, a, b)
}

func TestNewKeysAEADAndLegacyDiffer(t *testing.T) {
	rnd := vcrypto.FixedRand{Seed: []byte{1, 2, 3, 4, 5}}
	aeadKeys := NewKeys(rnd, true)
	legacyKeys := NewKeys(rnd, false)

	require.Equal(t, aeadKeys.RequestBodyKey, legacyKeys.RequestBodyKey)
	require.NotEqual(t, aeadKeys.ResponseBodyKey, legacyKeys.ResponseBodyKey)
}
