// Package encoding builds and parses the cleartext vmess request/response
// headers and wraps them in either the legacy or AEAD handshake envelope.
package encoding

import (
	"github.com/xtls/vmess-core/common/crypto"
	"github.com/xtls/vmess-core/common/protocol"
	"github.com/xtls/vmess-core/proxy/vmess"
	"github.com/xtls/vmess-core/proxy/vmess/aead"
	"github.com/xtls/vmess-core/proxy/vmess/session"
)

// EncodeRequestHeader builds the wire bytes of a request handshake:
// the cleartext header (version, body IV/key, options, security,
// command, destination, random padding and an FNV-1a32 checksum) sealed
// either in the legacy HMAC-MD5/AES-CFB envelope or the AEAD auth_id
// envelope, selected by isAEAD.
func EncodeRequestHeader(
	id *protocol.ID,
	keys *session.Keys,
	dest protocol.Destination,
	security protocol.SecurityType,
	isUDP bool,
	isAEAD bool,
	rnd crypto.Rand,
	clock crypto.Clock,
) ([]byte, error) {
	plaintext := buildCleartextHeader(keys, dest, security, isUDP, rnd)

	now := clock.Now()
	if isAEAD {
		authID := aead.CreateAuthID(id.CmdKey(), now, rnd)
		return aead.SealRequestHeader(id.CmdKey(), authID, plaintext, rnd), nil
	}
	return sealLegacyRequestHeader(id.Bytes(), id.CmdKey(), now.Unix(), plaintext), nil
}

func buildCleartextHeader(keys *session.Keys, dest protocol.Destination, security protocol.SecurityType, isUDP bool, rnd crypto.Rand) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, vmess.Version)
	buf = append(buf, keys.RequestBodyIV[:]...)
	buf = append(buf, keys.RequestBodyKey[:]...)
	buf = append(buf, keys.ResponseHeader)
	buf = append(buf, vmess.OptionChunkStream)

	paddingLen := int(rnd.Uint16() % 16)
	buf = append(buf, byte(paddingLen<<4)|byte(security))

	buf = append(buf, 0) // reserved

	if isUDP {
		buf = append(buf, vmess.CommandUDP)
	} else {
		buf = append(buf, vmess.CommandTCP)
	}

	buf = writeDestination(buf, dest)

	if paddingLen > 0 {
		padding := make([]byte, paddingLen)
		rnd.Fill(padding)
		buf = append(buf, padding...)
	}

	checksum := crypto.FNV1a32(buf)
	var checksumBytes [4]byte
	checksumBytes[0] = byte(checksum >> 24)
	checksumBytes[1] = byte(checksum >> 16)
	checksumBytes[2] = byte(checksum >> 8)
	checksumBytes[3] = byte(checksum)
	buf = append(buf, checksumBytes[:]...)

	return buf
}
