package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"hash"
	"hash/fnv"
)

// MD5Sum returns the MD5 digest of data.
func MD5Sum(data ...[]byte) [md5.Size]byte {
	h := md5.New()
	for _, d := range data {
		h.Write(d)
	}
	var sum [md5.Size]byte
	h.Sum(sum[:0])
	return sum
}

// SHA256Sum returns the SHA-256 digest of data.
func SHA256Sum(data ...[]byte) [sha256.Size]byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var sum [sha256.Size]byte
	h.Sum(sum[:0])
	return sum
}

// HMACMD5 returns a new HMAC-MD5 hash.Hash keyed by key.
func HMACMD5(key []byte) hash.Hash {
	return hmac.New(md5.New, key)
}

// HMACSHA256 returns a new HMAC-SHA-256 hash.Hash keyed by key.
func HMACSHA256(key []byte) hash.Hash {
	return hmac.New(sha256.New, key)
}

// FNV1a32 returns the FNV-1a 32-bit checksum of data, used for the
// cleartext request header's integrity field in both handshake modes.
func FNV1a32(data []byte) uint32 {
	h := fnv.New32a()
	h.Write(data)
	return h.Sum32()
}
