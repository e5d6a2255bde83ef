package crypto

import (
	"crypto/rand"
	"encoding/binary"
)

// Rand is the source of randomness every handshake-construction call
// takes explicitly, so tests can inject fixed bytes instead of
// patching a package-global crypto/rand.Reader.
type Rand interface {
	// Fill fills b with random bytes.
	Fill(b []byte)
	// Uint16 returns a random uint16, used to pick the request header's padding length.
	Uint16() uint16
}

// CryptoRand is the production Rand backed by crypto/rand.Reader.
type CryptoRand struct{}

func (CryptoRand) Fill(b []byte) {
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
}

func (CryptoRand) Uint16() uint16 {
	var b [2]byte
	CryptoRand{}.Fill(b[:])
	return binary.BigEndian.Uint16(b[:])
}

// FixedRand is a deterministic Rand double for golden wire tests: Fill
// copies repeating bytes from a fixed seed and Uint16 is a fixed value.
type FixedRand struct {
	Seed []byte
	U16  uint16
}

func (f FixedRand) Fill(b []byte) {
	if len(f.Seed) == 0 {
		return
	}
	for i := range b {
		b[i] = f.Seed[i%len(f.Seed)]
	}
}

func (f FixedRand) Uint16() uint16 {
	return f.U16
}
