// Package buf provides a growable byte buffer sized for vmess chunk
// framing. Unlike the teacher's buffer, this one is not pool-recycled:
// a client core has no hot-path allocator pressure to amortize, and
// dropping the pool removes a whole dependency (common/bytespool).
package buf

import (
	"io"

	"github.com/xtls/vmess-core/common/errors"
)

// Size is the capacity of a Buffer allocated by New, large enough to
// hold one maximum-size vmess chunk.
const Size = 16384

var ErrBufferFull = errors.New("buffer is full")

// Buffer is a byte array with read/write cursors. It is not
// goroutine-safe; callers needing concurrent access (see
// proxy/vmess/outbound) hold their own separate buffers per direction.
type Buffer struct {
	v     []byte
	start int32
	end   int32
}

// New creates a Buffer with 0 length and Size capacity.
func New() *Buffer {
	return &Buffer{v: make([]byte, Size)}
}

// NewWithSize creates a Buffer with 0 length and capacity of at least size.
func NewWithSize(size int32) *Buffer {
	return &Buffer{v: make([]byte, size)}
}

// FromBytes wraps an existing byte slice as a full Buffer.
func FromBytes(b []byte) *Buffer {
	return &Buffer{v: b, end: int32(len(b))}
}

// Clear empties the buffer, results in Len() == 0.
func (b *Buffer) Clear() {
	b.start = 0
	b.end = 0
}

// Byte returns the byte at index.
func (b *Buffer) Byte(index int32) byte {
	return b.v[b.start+index]
}

// SetByte sets the byte value at index.
func (b *Buffer) SetByte(index int32, value byte) {
	b.v[b.start+index] = value
}

// Bytes returns the content bytes of this Buffer.
func (b *Buffer) Bytes() []byte {
	return b.v[b.start:b.end]
}

// Extend increases the buffer size by n bytes, growing the backing
// array if needed, and returns the extended part.
func (b *Buffer) Extend(n int32) []byte {
	end := b.end + n
	if end > int32(len(b.v)) {
		grown := make([]byte, end)
		copy(grown, b.v)
		b.v = grown
	}
	ext := b.v[b.end:end]
	b.end = end
	clear(ext)
	return ext
}

// BytesRange returns a slice of this buffer with the given from/to boundary.
func (b *Buffer) BytesRange(from, to int32) []byte {
	if from < 0 {
		from += b.Len()
	}
	if to < 0 {
		to += b.Len()
	}
	return b.v[b.start+from : b.start+to]
}

// BytesFrom returns a slice of this Buffer starting from the given position.
func (b *Buffer) BytesFrom(from int32) []byte {
	if from < 0 {
		from += b.Len()
	}
	return b.v[b.start+from : b.end]
}

// Advance cuts consumed bytes off the front of the buffer.
func (b *Buffer) Advance(from int32) {
	if from < 0 {
		from += b.Len()
	}
	b.start += from
	if b.start < 0 {
		b.start = 0
	}
	if b.start > b.end {
		b.start = b.end
	}
}

// Len returns the length of the buffer content.
func (b *Buffer) Len() int32 {
	if b == nil {
		return 0
	}
	return b.end - b.start
}

// IsEmpty returns true if the buffer is empty.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// Write implements io.Writer, growing the backing array as needed.
func (b *Buffer) Write(data []byte) (int, error) {
	if need := b.end + int32(len(data)); need > int32(len(b.v)) {
		grown := make([]byte, need)
		copy(grown, b.v)
		b.v = grown
	}
	n := copy(b.v[b.end:], data)
	b.end += int32(n)
	return n, nil
}

// WriteByte writes a single byte into the buffer.
func (b *Buffer) WriteByte(v byte) error {
	_, err := b.Write([]byte{v})
	return err
}

// ReadByte implements io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	if b.start == b.end {
		return 0, io.EOF
	}
	nb := b.v[b.start]
	b.start++
	return nb, nil
}

// Read implements io.Reader.
func (b *Buffer) Read(data []byte) (int, error) {
	if b.Len() == 0 {
		return 0, io.EOF
	}
	n := copy(data, b.v[b.start:b.end])
	if int32(n) == b.Len() {
		b.Clear()
	} else {
		b.start += int32(n)
	}
	return n, nil
}

// ReadFullFrom reads exactly size bytes from reader into the tail of
// the buffer, or returns the error (possibly io.ErrUnexpectedEOF) from
// io.ReadFull.
func (b *Buffer) ReadFullFrom(reader io.Reader, size int32) (int64, error) {
	end := b.end + size
	if end > int32(len(b.v)) {
		return 0, errors.New("out of bound: ", end)
	}
	n, err := io.ReadFull(reader, b.v[b.end:end])
	b.end += int32(n)
	return int64(n), err
}

// String returns the string form of this Buffer.
func (b *Buffer) String() string {
	return string(b.Bytes())
}
