// Package session holds the per-connection key material a vmess
// client derives once at dial time and then uses for both the
// handshake envelope and the chunked body cipher.
package session

import (
	vcrypto "github.com/xtls/vmess-core/common/crypto"
)

// Keys holds the symmetric material for one vmess connection: the
// client picks requestBodyKey/IV and the response side is derived
// from them, by SHA-256 truncation under AEAD or by MD5 under the
// legacy handshake.
type Keys struct {
	RequestBodyKey  [16]byte
	RequestBodyIV   [16]byte
	ResponseBodyKey [16]byte
	ResponseBodyIV  [16]byte
	// ResponseHeader is the single verification byte the server must
	// echo back at the front of its response header.
	ResponseHeader byte
}

// NewKeys draws fresh request key material from rnd and derives the
// matching response key material. isAEAD selects SHA-256 (AEAD) vs
// MD5 (legacy) truncation for the response key/IV derivation.
func NewKeys(rnd vcrypto.Rand, isAEAD bool) *Keys {
	var seed [33]byte // 16 + 16 + 1
	rnd.Fill(seed[:])

	k := &Keys{}
	copy(k.RequestBodyKey[:], seed[:16])
	copy(k.RequestBodyIV[:], seed[16:32])
	k.ResponseHeader = seed[32]

	if isAEAD {
		respKey := vcrypto.SHA256Sum(k.RequestBodyKey[:])
		copy(k.ResponseBodyKey[:], respKey[:16])
		respIV := vcrypto.SHA256Sum(k.RequestBodyIV[:])
		copy(k.ResponseBodyIV[:], respIV[:16])
	} else {
		respKey := vcrypto.MD5Sum(k.RequestBodyKey[:])
		copy(k.ResponseBodyKey[:], respKey[:])
		respIV := vcrypto.MD5Sum(k.RequestBodyIV[:])
		copy(k.ResponseBodyIV[:], respIV[:])
	}

	return k
}
