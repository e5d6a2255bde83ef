package outbound

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/xtls/vmess-core/common/buf"
	"github.com/xtls/vmess-core/common/errors"
	"github.com/xtls/vmess-core/proxy/vmess"
	"github.com/xtls/vmess-core/proxy/vmess/cipher"
	"github.com/xtls/vmess-core/proxy/vmess/encoding"
	"github.com/xtls/vmess-core/proxy/vmess/session"
)

// readState names the stage of the read-side state machine, mirroring
// the handshake-then-chunk-loop cycle a connection's response side
// goes through: the handshake response header is parsed exactly once,
// then every subsequent Read drains one length-prefixed chunk at a
// time.
type readState int

const (
	readStateHandshake readState = iota
	readStateWaitingLength
	readStateWaitingData
	readStateFlushingData
)

// readHalf owns the read direction of a Stream: its own mutex, its
// own chunk cipher, and the decrypted-but-unconsumed tail of the
// current chunk. It shares nothing mutable with writeHalf.
type readHalf struct {
	mu sync.Mutex

	conn   io.Reader
	keys   *session.Keys
	isAEAD bool
	cipher *cipher.ChunkCipher

	state     readState
	chunkLen  int
	pending   []byte
	pendingAt int
}

func newReadHalf(conn io.Reader, keys *session.Keys, isAEAD bool, c *cipher.ChunkCipher) *readHalf {
	return &readHalf{conn: conn, keys: keys, isAEAD: isAEAD, cipher: c, state: readStateHandshake}
}

func (r *readHalf) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		switch r.state {
		case readStateHandshake:
			if err := encoding.DecodeResponseHeader(r.keys, r.conn, r.isAEAD); err != nil {
				return 0, err
			}
			r.state = readStateWaitingLength

		case readStateWaitingLength:
			var lenBytes [2]byte
			if _, err := io.ReadFull(r.conn, lenBytes[:]); err != nil {
				return 0, errors.New("failed to read chunk length").Base(err).WithKind(errors.KindUnexpectedEof)
			}
			size := int(binary.BigEndian.Uint16(lenBytes[:]))
			if size > vmess.MaxChunkSize {
				return 0, errors.New("chunk size too large: ", size).WithKind(errors.KindInvalidData)
			}
			if size == 0 {
				// zero-length chunk terminates the stream.
				return 0, io.EOF
			}
			r.chunkLen = size
			r.state = readStateWaitingData

		case readStateWaitingData:
			chunkBuf := buf.NewWithSize(int32(r.chunkLen))
			if _, err := chunkBuf.ReadFullFrom(r.conn, int32(r.chunkLen)); err != nil {
				return 0, errors.New("failed to read chunk data").Base(err).WithKind(errors.KindUnexpectedEof)
			}
			plain, err := r.cipher.Open(nil, chunkBuf.Bytes())
			if err != nil {
				return 0, err
			}
			r.pending = plain
			r.pendingAt = 0
			r.state = readStateFlushingData

		case readStateFlushingData:
			if r.pendingAt >= len(r.pending) {
				r.pending = nil
				r.state = readStateWaitingLength
				continue
			}
			n := copy(p, r.pending[r.pendingAt:])
			r.pendingAt += n
			return n, nil
		}
	}
}

// writeHalf owns the write direction of a Stream: its own mutex and
// its own chunk cipher, independent of readHalf's state.
type writeHalf struct {
	mu sync.Mutex

	conn   io.Writer
	cipher *cipher.ChunkCipher
}

func newWriteHalf(conn io.Writer, c *cipher.ChunkCipher) *writeHalf {
	return &writeHalf{conn: conn, cipher: c}
}

func (w *writeHalf) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	maxPayload := vmess.MaxChunkSize - w.cipher.Overhead()
	total := 0
	for total < len(p) {
		n := len(p) - total
		if n > maxPayload {
			n = maxPayload
		}
		chunk := p[total : total+n]

		sealed, err := w.cipher.Seal(nil, chunk)
		if err != nil {
			return total, err
		}

		var lenBytes [2]byte
		binary.BigEndian.PutUint16(lenBytes[:], uint16(len(sealed)))

		if err := writeAll(w.conn, lenBytes[:]); err != nil {
			return total, errors.New("failed to write chunk length").Base(err)
		}
		if err := writeAll(w.conn, sealed); err != nil {
			return total, errors.New("failed to write chunk data").Base(err)
		}
		total += n
	}
	return total, nil
}

// writeAll drains p to w, looping over short writes the way
// FlushingData does on the wire protocol's write path. A Write that
// reports 0 bytes accepted with no error would loop forever, so that
// case fails immediately with KindWriteZero instead.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New("transport accepted 0 bytes").WithKind(errors.KindWriteZero)
		}
		p = p[n:]
	}
	return nil
}
