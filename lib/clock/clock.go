package clock

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

// --------------------------------------------------------------------------
// Timestamp
// --------------------------------------------------------------------------

// Timestamp is a point in time expressed in milliseconds since the Unix epoch.
type Timestamp uint64

// Add returns the timestamp shifted by d. The duration is truncated to
// millisecond resolution; negative durations move the timestamp backwards
// but never below zero.
func (ts Timestamp) Add(d time.Duration) Timestamp {
	ms := d.Milliseconds()
	if ms < 0 {
		if uint64(-ms) > uint64(ts) {
			return 0
		}
		return ts - Timestamp(-ms)
	}
	return ts + Timestamp(ms)
}

// Sub returns the duration ts-other.
func (ts Timestamp) Sub(other Timestamp) time.Duration {
	return time.Duration(int64(ts)-int64(other)) * time.Millisecond
}

// Time converts the timestamp to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts)).UTC()
}

func (ts Timestamp) String() string {
	return strconv.FormatUint(uint64(ts), 10)
}

// --------------------------------------------------------------------------
// Clock Interface
// --------------------------------------------------------------------------

// Clock is a source of timestamps. Implementations must be safe for
// concurrent use.
type Clock interface {
	// Now returns the current timestamp of the clock.
	Now() Timestamp
}

// --------------------------------------------------------------------------
// System Clock
// --------------------------------------------------------------------------

// SystemClock reads the system wall clock.
type SystemClock struct{}

// NewSystemClock returns a clock backed by the system time.
func NewSystemClock() SystemClock {
	return SystemClock{}
}

// Now returns the milliseconds elapsed since the Unix epoch.
// It panics if the system clock reports a time before the epoch.
func (SystemClock) Now() Timestamp {
	ms := time.Now().UnixMilli()
	if ms < 0 {
		panic(fmt.Sprintf("clock may have gone backwards: %dms before the unix epoch", -ms))
	}
	return Timestamp(ms)
}

// --------------------------------------------------------------------------
// Fake Clocks (deterministic)
// --------------------------------------------------------------------------

// FakeClock is a clock that is fully controlled by the caller.
type FakeClock struct {
	now atomic.Uint64
}

// NewFakeClock returns a clock that reports now until Set is called.
func NewFakeClock(now Timestamp) *FakeClock {
	c := &FakeClock{}
	c.now.Store(uint64(now))
	return c
}

// Now returns the current value of the clock.
func (c *FakeClock) Now() Timestamp {
	return Timestamp(c.now.Load())
}

// Set replaces the value returned by Now.
func (c *FakeClock) Set(ts Timestamp) {
	c.now.Store(uint64(ts))
}

// IncFakeClock increments its value every time it is read.
// This is useful when tests need unique and ordered timestamps. The values are
// only partially deterministic: the number of reads is not always under the
// control of the test, and concurrent readers have no ordering guarantee
// among each other.
type IncFakeClock struct {
	now       atomic.Uint64
	increment uint64
}

// NewIncFakeClock returns a clock starting at now that advances by increment
// on every read. Increments below one millisecond are raised to one
// millisecond so that consecutive reads are always distinct.
func NewIncFakeClock(now Timestamp, increment time.Duration) *IncFakeClock {
	inc := increment.Milliseconds()
	if inc < 1 {
		inc = 1
	}
	c := &IncFakeClock{increment: uint64(inc)}
	c.now.Store(uint64(now))
	return c
}

// Now advances the clock by the configured increment and returns the new value.
//
// Thread-safety: the read-modify-write is a single atomic add, so no two
// callers observe the same value.
func (c *IncFakeClock) Now() Timestamp {
	return Timestamp(c.now.Add(c.increment))
}

// Increment returns the configured increment.
func (c *IncFakeClock) Increment() time.Duration {
	return time.Duration(c.increment) * time.Millisecond
}
