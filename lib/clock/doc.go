// Package clock provides the time sources used for transaction timestamps and
// record versioning.
//
// All clocks satisfy the Clock interface and are passed explicitly to the
// components that need them (see kvs.WithClock). There is no process-wide
// clock, which makes it possible to substitute a deterministic clock in tests.
//
// Implementations:
//
//   - SystemClock: wall-clock time in milliseconds since the Unix epoch. It is
//     stateless and can be shared freely. A system time before the epoch is an
//     unrecoverable environment fault and causes a panic.
//
//   - FakeClock: always returns the value it was created with, or the last
//     value passed to Set.
//
//   - IncFakeClock: advances its internal value by a fixed increment on every
//     read. Each call to Now returns a distinct, strictly increasing value,
//     even when called concurrently, but the values are not related to the
//     wall clock.
//
// Usage Example:
//
//	clk := clock.NewIncFakeClock(clock.Timestamp(1000), time.Millisecond)
//	clk.Now() // 1001
//	clk.Now() // 1002
package clock
