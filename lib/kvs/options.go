package kvs

import (
	"time"

	"github.com/ValentinKolb/dQL/lib/clock"
)

const (
	// lockKey is the lock manager key of the serialization lock
	lockKey = "txn"

	defaultLockTTL      = 30 * time.Second
	defaultStartTimeout = 30 * time.Second
	releaseTimeout      = 5 * time.Second
)

type options struct {
	clock        clock.Clock
	lockTTL      time.Duration
	startTimeout time.Duration
}

func defaultOptions() options {
	return options{
		clock:        clock.NewSystemClock(),
		lockTTL:      defaultLockTTL,
		startTimeout: defaultStartTimeout,
	}
}

// Option configures a Datastore.
type Option func(*options)

// WithClock sets the clock used for transaction timestamps, commit versions
// of the memory backend and lease expiry.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

// WithLockTTL sets the lifetime of the serialization lock of the distributed
// backend. A lock held longer than ttl is taken over by the next waiter.
// Zero disables expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(o *options) { o.lockTTL = ttl }
}

// WithStartTimeout bounds how long New waits for a raft shard to elect a leader.
func WithStartTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.startTimeout = d
		}
	}
}
