package encoding

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	vcrypto "github.com/xtls/vmess-core/common/crypto"
	"github.com/xtls/vmess-core/common/errors"
	"github.com/xtls/vmess-core/proxy/vmess/aead"
	"github.com/xtls/vmess-core/proxy/vmess/session"
)

func sealAEADResponse(keys *session.Keys, plain []byte) []byte {
	lengthKey := aead.KDF16(keys.ResponseBodyKey[:], []byte(aead.KDFSaltConstAEADRespHeaderLenKey))
	lengthNonce := aead.KDF(keys.ResponseBodyIV[:], []byte(aead.KDFSaltConstAEADRespHeaderLenIV))[:12]
	payloadKey := aead.KDF16(keys.ResponseBodyKey[:], []byte(aead.KDFSaltConstAEADRespHeaderPayloadKey))
	payloadNonce := aead.KDF(keys.ResponseBodyIV[:], []byte(aead.KDFSaltConstAEADRespHeaderPayloadIV))[:12]

	var lenBytes [2]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(len(plain)))

	out := vcrypto.GCMSeal(nil, lengthKey, lengthNonce, lenBytes[:], nil)
	out = vcrypto.GCMSeal(out, payloadKey, payloadNonce, plain, nil)
	return out
}

func TestDecodeResponseHeaderAEADAccepts(t *testing.T) {
	rnd := vcrypto.FixedRand{Seed: []byte{1, 2, 3}}
	keys := session.NewKeys(rnd, true)

	plain := []byte{keys.ResponseHeader, 0, 0, 0}
	wire := sealAEADResponse(keys, plain)

	err := DecodeResponseHeader(keys, bytes.NewReader(wire), true)
	require.NoError(t, err)
}

func TestDecodeResponseHeaderAEADRejectsWrongRespV(t *testing.T) {
	rnd := vcrypto.FixedRand{Seed: []byte{4, 5, 6}}
	keys := session.NewKeys(rnd, true)

	plain := []byte{keys.ResponseHeader ^ 0xFF, 0, 0, 0}
	wire := sealAEADResponse(keys, plain)

	err := DecodeResponseHeader(keys, bytes.NewReader(wire), true)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.InvalidData)
}

func TestDecodeResponseHeaderAEADRejectsDynamicPort(t *testing.T) {
	rnd := vcrypto.FixedRand{Seed: []byte{7, 8, 9}}
	keys := session.NewKeys(rnd, true)

	plain := []byte{keys.ResponseHeader, 0, 1, 0}
	wire := sealAEADResponse(keys, plain)

	err := DecodeResponseHeader(keys, bytes.NewReader(wire), true)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.InvalidData)
}

func TestDecodeResponseHeaderLegacyAccepts(t *testing.T) {
	rnd := vcrypto.FixedRand{Seed: []byte{1, 1, 1}}
	keys := session.NewKeys(rnd, false)

	plain := []byte{keys.ResponseHeader, 0, 0, 0}
	vcrypto.CFBEncrypt(keys.ResponseBodyKey[:], keys.ResponseBodyIV[:], plain)

	err := DecodeResponseHeader(keys, bytes.NewReader(plain), false)
	require.NoError(t, err)
}

func TestDecodeResponseHeaderLegacyRejectsShortRead(t *testing.T) {
	rnd := vcrypto.FixedRand{Seed: []byte{2, 2, 2}}
	keys := session.NewKeys(rnd, false)

	err := DecodeResponseHeader(keys, bytes.NewReader([]byte{1, 2}), false)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.UnexpectedEof)
}
