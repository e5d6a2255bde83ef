package crypto

import (
	"sync/atomic"
	"time"
)

// Clock is the source of "now" every handshake timestamp call takes
// explicitly, so golden wire tests can fix the timestamp instead of
// patching time.Now.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock. It keeps an atomically
// adjustable offset so a caller that learns of clock skew against a
// peer can correct for it without needing a new Clock value threaded
// through every call site.
type SystemClock struct {
	offset atomic.Pointer[time.Duration]
}

func NewSystemClock() *SystemClock {
	c := &SystemClock{}
	c.offset.Store(new(time.Duration))
	return c
}

func (c *SystemClock) Now() time.Time {
	return time.Now().Add(*c.offset.Load())
}

// AdjustOffset sets the correction applied to every subsequent Now() call.
func (c *SystemClock) AdjustOffset(d time.Duration) {
	c.offset.Store(&d)
}

// FixedClock is a deterministic Clock double for golden wire tests.
type FixedClock struct {
	T time.Time
}

func (f FixedClock) Now() time.Time { return f.T }
