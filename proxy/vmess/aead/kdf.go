// Package aead implements the VMess AEAD key derivation chain and the
// AEAD request-header envelope built on top of it.
package aead

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

// hash2 lets KDF nest one HMAC inside another by handing the outer
// hmac.New a constructor that returns the already-built inner HMAC
// wrapped in hash2 on its first call and bare on its second. hmac.New
// calls the constructor twice (for its outer and inner hash) and
// rejects two equal values; the wrapper makes the two compare unequal
// while both still drive the same underlying HMAC.
type hash2 struct {
	hash.Hash
}

// KDF derives a key from nested HMACs: the innermost is HMAC-SHA-256
// keyed by the fixed VMess AEAD KDF base key, and each element of path
// is the key of a new HMAC that uses the previous one as its hash
// function. So KDF(key, saltA, saltB) is an HMAC keyed by saltB over
// an HMAC keyed by saltA over HMAC-SHA-256 keyed by the base key, and
// key is the message written to that outermost HMAC.
func KDF(key []byte, path ...[]byte) []byte {
	hmacf := hmac.New(sha256.New, []byte(KDFSaltConstVMessAEADKDF))

	for _, v := range path {
		first := true
		salt := v
		hmacf = hmac.New(func() hash.Hash {
			if first {
				first = false
				return hash2{hmacf}
			}
			return hmacf
		}, salt)
	}
	hmacf.Write(key)
	return hmacf.Sum(nil)
}

// KDF16 returns the first 16 bytes of KDF(key, path...).
func KDF16(key []byte, path ...[]byte) []byte {
	return KDF(key, path...)[:16]
}
