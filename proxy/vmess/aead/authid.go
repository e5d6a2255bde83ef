package aead

import (
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/xtls/vmess-core/common/crypto"
)

// CreateAuthID builds the 16-byte auth_id that opens every AEAD
// request: an 8-byte big-endian Unix timestamp, 4 random bytes and a
// 4-byte big-endian CRC32 (IEEE) checksum of those first 12 bytes, the
// whole block then encrypted in place with a single AES-128-ECB block
// operation under KDF16(cmdKey, "AES Auth ID Encryption").
func CreateAuthID(cmdKey []byte, now time.Time, rnd crypto.Rand) [16]byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(now.Unix()))
	rnd.Fill(buf[8:12])
	binary.BigEndian.PutUint32(buf[12:16], crc32.ChecksumIEEE(buf[0:12]))

	key := KDF16(cmdKey, []byte(KDFSaltConstAuthIDEncryptionKey))
	crypto.ECBEncryptBlock(key, buf[:])
	return buf
}
