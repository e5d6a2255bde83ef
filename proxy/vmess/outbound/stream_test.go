package outbound

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	vcrypto "github.com/xtls/vmess-core/common/crypto"
	"github.com/xtls/vmess-core/common/errors"
	"github.com/xtls/vmess-core/common/protocol"
	"github.com/xtls/vmess-core/proxy/vmess/aead"
	"github.com/xtls/vmess-core/proxy/vmess/cipher"
	"github.com/xtls/vmess-core/proxy/vmess/session"
)

// serverEcho plays the server half of one handshake + chunk exchange
// directly against the keys the client derived (handed to it out of
// band by the test, since this core has no server-side header
// parser), and echoes back whatever chunks the client sends.
func serverEcho(t *testing.T, conn net.Conn, keys *session.Keys, security protocol.SecurityType, isAEAD bool) {
	t.Helper()

	// NewStream writes the whole handshake request in one Write call;
	// net.Pipe only unblocks that Write once a Read has drained it, so
	// consume it here before the response header goes back.
	discard := make([]byte, 4096)
	if _, err := conn.Read(discard); err != nil {
		return
	}

	respHeader := buildResponseHeader(keys, isAEAD)
	if _, err := conn.Write(respHeader); err != nil {
		return
	}

	readCipher, err := cipher.NewChunkCipher(security, keys.RequestBodyKey[:], keys.RequestBodyIV[:])
	require.NoError(t, err)
	writeCipher, err := cipher.NewChunkCipher(security, keys.ResponseBodyKey[:], keys.ResponseBodyIV[:])
	require.NoError(t, err)

	for {
		var lenBytes [2]byte
		if _, err := io.ReadFull(conn, lenBytes[:]); err != nil {
			return
		}
		size := binary.BigEndian.Uint16(lenBytes[:])
		ciphertext := make([]byte, size)
		if _, err := io.ReadFull(conn, ciphertext); err != nil {
			return
		}
		plain, err := readCipher.Open(nil, ciphertext)
		if err != nil {
			return
		}

		sealed, err := writeCipher.Seal(nil, plain)
		if err != nil {
			return
		}
		var outLen [2]byte
		binary.BigEndian.PutUint16(outLen[:], uint16(len(sealed)))
		if _, err := conn.Write(outLen[:]); err != nil {
			return
		}
		if _, err := conn.Write(sealed); err != nil {
			return
		}
	}
}

func buildResponseHeader(keys *session.Keys, isAEAD bool) []byte {
	plain := []byte{keys.ResponseHeader, 0, 0, 0}

	if !isAEAD {
		vcrypto.CFBEncrypt(keys.ResponseBodyKey[:], keys.ResponseBodyIV[:], plain)
		return plain
	}

	lengthKey := aead.KDF16(keys.ResponseBodyKey[:], []byte(aead.KDFSaltConstAEADRespHeaderLenKey))
	lengthNonce := aead.KDF(keys.ResponseBodyIV[:], []byte(aead.KDFSaltConstAEADRespHeaderLenIV))[:12]
	payloadKey := aead.KDF16(keys.ResponseBodyKey[:], []byte(aead.KDFSaltConstAEADRespHeaderPayloadKey))
	payloadNonce := aead.KDF(keys.ResponseBodyIV[:], []byte(aead.KDFSaltConstAEADRespHeaderPayloadIV))[:12]

	var lenBytes [2]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(len(plain)))

	sealedLen := vcrypto.GCMSeal(nil, lengthKey, lengthNonce, lenBytes[:], nil)
	sealedPayload := vcrypto.GCMSeal(nil, payloadKey, payloadNonce, plain, nil)

	out := append([]byte(nil), sealedLen...)
	out = append(out, sealedPayload...)
	return out
}

func TestStreamHandshakeAndEchoAES128GCM(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	id := protocol.NewID(uuid.MustParse("b831381d-6324-4d53-ad4f-8cda48b30811"))
	dest := protocol.TCPDestination(protocol.DomainAddress("example.com"), protocol.Port(443))
	rnd := vcrypto.FixedRand{Seed: []byte{1, 2, 3, 4, 5, 6, 7, 8}, U16: 0}
	clock := vcrypto.FixedClock{T: time.Unix(1700000000, 0)}

	cfg := Config{
		ID:          id,
		Destination: dest,
		Security:    protocol.SecurityTypeAES128GCM,
		IsAEAD:      true,
		IsUDP:       false,
		Rand:        rnd,
		Clock:       clock,
	}

	// NewStream derives its keys from rnd starting at the same point
	// in the byte stream FixedRand always replays from, so the test's
	// fake server can reconstruct identical key material independently.
	keys := session.NewKeys(rnd, true)

	var clientStream *Stream
	done := make(chan error, 1)
	go func() {
		s, err := NewStream(clientConn, cfg)
		clientStream = s
		done <- err
	}()

	go serverEcho(t, serverConn, keys, protocol.SecurityTypeAES128GCM, true)

	require.NoError(t, <-done)
	require.NotNil(t, clientStream)

	// net.Pipe has no buffering and the server is blocked writing the
	// response header until the client reads it, so the client writes
	// from another goroutine while this one reads.
	msg := []byte("hello over vmess")
	writeDone := make(chan error, 1)
	go func() {
		_, err := clientStream.Write(msg)
		writeDone <- err
	}()

	readBuf := make([]byte, len(msg))
	_, err := io.ReadFull(clientStream, readBuf)
	require.NoError(t, err)
	require.NoError(t, <-writeDone)
	require.Equal(t, msg, readBuf)
}

func TestStreamRejectsDynamicPortResponse(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	id := protocol.NewID(uuid.MustParse("b831381d-6324-4d53-ad4f-8cda48b30811"))
	dest := protocol.TCPDestination(protocol.DomainAddress("example.com"), protocol.Port(443))
	rnd := vcrypto.FixedRand{Seed: []byte{1, 2, 3, 4}}
	clock := vcrypto.FixedClock{T: time.Unix(1700000000, 0)}

	cfg := Config{
		ID:          id,
		Destination: dest,
		Security:    protocol.SecurityTypeNone,
		IsAEAD:      true,
		IsUDP:       false,
		Rand:        rnd,
		Clock:       clock,
	}

	keys := session.NewKeys(rnd, true)

	type result struct {
		s   *Stream
		err error
	}
	newStreamDone := make(chan result, 1)
	go func() {
		s, err := NewStream(clientConn, cfg)
		newStreamDone <- result{s, err}
	}()

	go func() {
		discard := make([]byte, 4096)
		if _, err := serverConn.Read(discard); err != nil {
			return
		}

		plain := []byte{keys.ResponseHeader, 0, 1, 0} // non-zero command byte: dynamic port
		lengthKey := aead.KDF16(keys.ResponseBodyKey[:], []byte(aead.KDFSaltConstAEADRespHeaderLenKey))
		lengthNonce := aead.KDF(keys.ResponseBodyIV[:], []byte(aead.KDFSaltConstAEADRespHeaderLenIV))[:12]
		payloadKey := aead.KDF16(keys.ResponseBodyKey[:], []byte(aead.KDFSaltConstAEADRespHeaderPayloadKey))
		payloadNonce := aead.KDF(keys.ResponseBodyIV[:], []byte(aead.KDFSaltConstAEADRespHeaderPayloadIV))[:12]

		var lenBytes [2]byte
		binary.BigEndian.PutUint16(lenBytes[:], uint16(len(plain)))
		sealedLen := vcrypto.GCMSeal(nil, lengthKey, lengthNonce, lenBytes[:], nil)
		sealedPayload := vcrypto.GCMSeal(nil, payloadKey, payloadNonce, plain, nil)

		serverConn.Write(sealedLen)
		serverConn.Write(sealedPayload)
	}()

	res := <-newStreamDone
	require.NoError(t, res.err) // handshake send itself doesn't fail; the refusal surfaces on Read

	readBuf := make([]byte, 1)
	_, err := res.s.Read(readBuf)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.InvalidData)
}

func TestNewStreamRejectsUnsupportedSecurityType(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	id := protocol.NewID(uuid.MustParse("b831381d-6324-4d53-ad4f-8cda48b30811"))
	dest := protocol.TCPDestination(protocol.DomainAddress("example.com"), protocol.Port(443))
	rnd := vcrypto.FixedRand{Seed: []byte{1, 2, 3, 4}}
	clock := vcrypto.FixedClock{T: time.Unix(1700000000, 0)}

	cfg := Config{
		ID:          id,
		Destination: dest,
		Security:    protocol.SecurityType(0x09), // not one of the three supported kinds
		IsAEAD:      true,
		IsUDP:       false,
		Rand:        rnd,
		Clock:       clock,
	}

	_, err := NewStream(clientConn, cfg)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.Unsupported)
}
