package encoding

import (
	"encoding/binary"

	vcrypto "github.com/xtls/vmess-core/common/crypto"
)

// hashTimestamp derives the AES-128-CFB IV used to wrap a legacy
// (non-AEAD) request header: MD5 of the big-endian Unix timestamp
// repeated four times. Concatenating the timestamp with itself is
// weak by modern standards, but it's what the legacy wire format
// requires and this core only speaks it for backward compatibility.
func hashTimestamp(unixSeconds int64) [16]byte {
	var tsBytes [8]byte
	binary.BigEndian.PutUint64(tsBytes[:], uint64(unixSeconds))

	sum := vcrypto.MD5Sum(tsBytes[:], tsBytes[:], tsBytes[:], tsBytes[:])
	return sum
}

// legacyAuth returns the 16-byte HMAC-MD5(key=rawUUID, msg=timestamp)
// that opens a legacy request on the wire, ahead of the encrypted header.
func legacyAuth(rawUUID []byte, unixSeconds int64) []byte {
	var tsBytes [8]byte
	binary.BigEndian.PutUint64(tsBytes[:], uint64(unixSeconds))

	h := vcrypto.HMACMD5(rawUUID)
	h.Write(tsBytes[:])
	return h.Sum(nil)
}

// sealLegacyRequestHeader wraps plaintext (the cleartext request
// header) for the non-AEAD wire format: a 16-byte HMAC-MD5 auth
// prefix keyed by the raw user UUID, followed by plaintext encrypted
// in place with AES-128-CFB under cmdKey/hashTimestamp(now).
func sealLegacyRequestHeader(rawUUID, cmdKey []byte, now int64, plaintext []byte) []byte {
	auth := legacyAuth(rawUUID, now)
	iv := hashTimestamp(now)

	encrypted := append([]byte(nil), plaintext...)
	vcrypto.CFBEncrypt(cmdKey, iv[:], encrypted)

	out := make([]byte, 0, len(auth)+len(encrypted))
	out = append(out, auth...)
	out = append(out, encrypted...)
	return out
}
