// Package outbound assembles a handshaken vmess connection on top of
// an already-dialed transport, exposing it as a net.Conn whose
// Read/Write drive the chunked AEAD framing underneath.
package outbound

import (
	"net"
	"time"

	"github.com/xtls/vmess-core/common/crypto"
	"github.com/xtls/vmess-core/common/errors"
	"github.com/xtls/vmess-core/common/protocol"
	"github.com/xtls/vmess-core/proxy/vmess/cipher"
	"github.com/xtls/vmess-core/proxy/vmess/encoding"
	"github.com/xtls/vmess-core/proxy/vmess/session"
)

// Stream is a vmess client connection layered over a transport
// net.Conn: constructing one sends the handshake request immediately,
// and the returned Stream's Read/Write speak the chunked AEAD
// payload framing in each direction independently.
type Stream struct {
	conn net.Conn

	read  *readHalf
	write *writeHalf
}

// Config names everything a handshake needs beyond the dialed transport.
type Config struct {
	ID          *protocol.ID
	Destination protocol.Destination
	Security    protocol.SecurityType
	IsAEAD      bool
	IsUDP       bool
	Rand        crypto.Rand
	Clock       crypto.Clock
}

// NewStream performs the vmess handshake over conn and returns the
// resulting framed Stream. The handshake request is written before
// this call returns; the handshake response is parsed lazily, on the
// first Read.
func NewStream(conn net.Conn, cfg Config) (*Stream, error) {
	if !cfg.Security.IsValid() {
		return nil, errors.New("unsupported security type: ", cfg.Security).WithKind(errors.KindUnsupported)
	}

	keys := session.NewKeys(cfg.Rand, cfg.IsAEAD)

	header, err := encoding.EncodeRequestHeader(cfg.ID, keys, cfg.Destination, cfg.Security, cfg.IsUDP, cfg.IsAEAD, cfg.Rand, cfg.Clock)
	if err != nil {
		return nil, errors.New("failed to build request header").Base(err)
	}
	if _, err := conn.Write(header); err != nil {
		return nil, errors.New("failed to write request header").Base(err)
	}

	writeCipher, err := cipher.NewChunkCipher(cfg.Security, keys.RequestBodyKey[:], keys.RequestBodyIV[:])
	if err != nil {
		return nil, errors.New("failed to build request chunk cipher").Base(err)
	}
	readCipher, err := cipher.NewChunkCipher(cfg.Security, keys.ResponseBodyKey[:], keys.ResponseBodyIV[:])
	if err != nil {
		return nil, errors.New("failed to build response chunk cipher").Base(err)
	}

	return &Stream{
		conn:  conn,
		read:  newReadHalf(conn, keys, cfg.IsAEAD, readCipher),
		write: newWriteHalf(conn, writeCipher),
	}, nil
}

func (s *Stream) Read(p []byte) (int, error)  { return s.read.Read(p) }
func (s *Stream) Write(p []byte) (int, error) { return s.write.Write(p) }

func (s *Stream) Close() error { return s.conn.Close() }

// CloseRead shuts down only the read half of the underlying
// transport, if it supports half-close, leaving writes unaffected.
func (s *Stream) CloseRead() error {
	if cr, ok := s.conn.(interface{ CloseRead() error }); ok {
		return cr.CloseRead()
	}
	return nil
}

// CloseWrite shuts down only the write half of the underlying
// transport, if it supports half-close, leaving reads unaffected.
func (s *Stream) CloseWrite() error {
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

func (s *Stream) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

func (s *Stream) SetDeadline(t time.Time) error      { return s.conn.SetDeadline(t) }
func (s *Stream) SetReadDeadline(t time.Time) error   { return s.conn.SetReadDeadline(t) }
func (s *Stream) SetWriteDeadline(t time.Time) error  { return s.conn.SetWriteDeadline(t) }
