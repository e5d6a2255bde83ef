package aead

import (
	"encoding/binary"

	"github.com/xtls/vmess-core/common/crypto"
	"github.com/xtls/vmess-core/common/errors"
)

const connectionNonceLen = 8

// SealRequestHeader wraps plaintext (the legacy request header bytes)
// in the AEAD handshake envelope:
//
//	auth_id(16) || sealed_len(2+16) || sealed_payload(len(plaintext)+16) || connection_nonce(8)
//
// The length field and the payload are each sealed under their own
// AES-128-GCM key/nonce, each derived via KDF from cmdKey with a salt,
// authID and a single random connection_nonce as the path, as
// described by SPEC_FULL's header codec section.
func SealRequestHeader(cmdKey []byte, authID [16]byte, plaintext []byte, rnd crypto.Rand) []byte {
	connectionNonce := make([]byte, connectionNonceLen)
	rnd.Fill(connectionNonce)

	lengthKey := KDF16(cmdKey, []byte(KDFSaltConstVMessHeaderPayloadLengthAEADKey), authID[:], connectionNonce)
	lengthNonce := KDF(cmdKey, []byte(KDFSaltConstVMessHeaderPayloadLengthAEADIV), authID[:], connectionNonce)[:12]
	payloadKey := KDF16(cmdKey, []byte(KDFSaltConstVMessHeaderPayloadAEADKey), authID[:], connectionNonce)
	payloadNonce := KDF(cmdKey, []byte(KDFSaltConstVMessHeaderPayloadAEADIV), authID[:], connectionNonce)[:12]

	var lenBytes [2]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(len(plaintext)))

	out := make([]byte, 0, 16+2+16+len(plaintext)+16+connectionNonceLen)
	out = append(out, authID[:]...)
	out = crypto.GCMSeal(out, lengthKey, lengthNonce, lenBytes[:], authID[:])
	out = crypto.GCMSeal(out, payloadKey, payloadNonce, plaintext, authID[:])
	out = append(out, connectionNonce...)
	return out
}

// OpenRequestHeaderLen authenticates and decodes the sealed length
// field at the front of an AEAD request header (used by tests and by
// any server-side counterpart) under the given connection_nonce,
// returning the plaintext payload length.
func OpenRequestHeaderLen(cmdKey []byte, authID [16]byte, sealedLen []byte, connectionNonce []byte) (int, error) {
	lengthKey := KDF16(cmdKey, []byte(KDFSaltConstVMessHeaderPayloadLengthAEADKey), authID[:], connectionNonce)
	lengthNonce := KDF(cmdKey, []byte(KDFSaltConstVMessHeaderPayloadLengthAEADIV), authID[:], connectionNonce)[:12]

	plain, err := crypto.GCMOpen(nil, lengthKey, lengthNonce, sealedLen, authID[:])
	if err != nil {
		return 0, errors.New("failed to open AEAD header length").Base(err)
	}
	if len(plain) != 2 {
		return 0, errors.New("unexpected AEAD header length field size: ", len(plain))
	}
	return int(binary.BigEndian.Uint16(plain)), nil
}

// OpenRequestHeaderPayload authenticates and decrypts the sealed
// payload following the length field.
func OpenRequestHeaderPayload(cmdKey []byte, authID [16]byte, sealedPayload []byte, connectionNonce []byte) ([]byte, error) {
	payloadKey := KDF16(cmdKey, []byte(KDFSaltConstVMessHeaderPayloadAEADKey), authID[:], connectionNonce)
	payloadNonce := KDF(cmdKey, []byte(KDFSaltConstVMessHeaderPayloadAEADIV), authID[:], connectionNonce)[:12]

	plain, err := crypto.GCMOpen(nil, payloadKey, payloadNonce, sealedPayload, authID[:])
	if err != nil {
		return nil, errors.New("failed to open AEAD header payload").Base(err)
	}
	return plain, nil
}
