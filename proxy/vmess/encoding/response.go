package encoding

import (
	"encoding/binary"
	"io"

	vcrypto "github.com/xtls/vmess-core/common/crypto"
	"github.com/xtls/vmess-core/common/errors"
	"github.com/xtls/vmess-core/proxy/vmess/aead"
	"github.com/xtls/vmess-core/proxy/vmess/session"
)

// DecodeResponseHeader reads and validates the response handshake
// header from r, dispatching to the legacy or AEAD wire format
// depending on isAEAD. It returns an error if the response doesn't
// echo this connection's resp_v byte, or if the peer names a dynamic
// port reassignment (a legacy command this core refuses to honor).
func DecodeResponseHeader(keys *session.Keys, r io.Reader, isAEAD bool) error {
	if isAEAD {
		return decodeAEADResponseHeader(keys, r)
	}
	return decodeLegacyResponseHeader(keys, r)
}

func decodeLegacyResponseHeader(keys *session.Keys, r io.Reader) error {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return errors.New("failed to read legacy response header").Base(err).AtWarning().WithKind(errors.KindUnexpectedEof)
	}

	vcrypto.CFBDecrypt(keys.ResponseBodyKey[:], keys.ResponseBodyIV[:], buf[:])

	if buf[0] != keys.ResponseHeader {
		return errors.New("unexpected response header, expecting ", int(keys.ResponseHeader), " but got ", int(buf[0])).WithKind(errors.KindInvalidData)
	}
	if buf[2] != 0 {
		return errors.New("response requests dynamic port reassignment, which this core does not support").WithKind(errors.KindInvalidData)
	}
	return nil
}

func decodeAEADResponseHeader(keys *session.Keys, r io.Reader) error {
	var sealedLen [18]byte
	if _, err := io.ReadFull(r, sealedLen[:]); err != nil {
		return errors.New("failed to read AEAD response header length").Base(err).AtWarning().WithKind(errors.KindUnexpectedEof)
	}

	lengthKey := aead.KDF16(keys.ResponseBodyKey[:], []byte(aead.KDFSaltConstAEADRespHeaderLenKey))
	lengthNonce := aead.KDF(keys.ResponseBodyIV[:], []byte(aead.KDFSaltConstAEADRespHeaderLenIV))[:12]

	lengthPlain, err := vcrypto.GCMOpen(nil, lengthKey, lengthNonce, sealedLen[:], nil)
	if err != nil {
		return errors.New("failed to decrypt AEAD response header length").Base(err).WithKind(errors.KindInvalidData)
	}
	if len(lengthPlain) < 2 {
		return errors.New("AEAD response header length field too short").WithKind(errors.KindInvalidData)
	}
	headerSize := int(binary.BigEndian.Uint16(lengthPlain[:2]))

	sealedHeader := make([]byte, headerSize+16)
	if _, err := io.ReadFull(r, sealedHeader); err != nil {
		return errors.New("failed to read AEAD response header payload").Base(err).AtWarning().WithKind(errors.KindUnexpectedEof)
	}

	payloadKey := aead.KDF16(keys.ResponseBodyKey[:], []byte(aead.KDFSaltConstAEADRespHeaderPayloadKey))
	payloadNonce := aead.KDF(keys.ResponseBodyIV[:], []byte(aead.KDFSaltConstAEADRespHeaderPayloadIV))[:12]

	plain, err := vcrypto.GCMOpen(nil, payloadKey, payloadNonce, sealedHeader, nil)
	if err != nil {
		return errors.New("failed to decrypt AEAD response header payload").Base(err).WithKind(errors.KindInvalidData)
	}
	if len(plain) < 4 {
		return errors.New("AEAD response header payload too short").WithKind(errors.KindInvalidData)
	}
	if plain[0] != keys.ResponseHeader {
		return errors.New("unexpected response header, expecting ", int(keys.ResponseHeader), " but got ", int(plain[0])).WithKind(errors.KindInvalidData)
	}
	if plain[2] != 0 {
		return errors.New("response requests dynamic port reassignment, which this core does not support").WithKind(errors.KindInvalidData)
	}
	return nil
}
