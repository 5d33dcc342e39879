package store

import (
	"context"
	"time"
)

// --------------------------------------------------------------------------
// Ranges
// --------------------------------------------------------------------------

// Range is the half-open key interval [Start, End). An empty End means the
// range has no upper bound.
type Range struct {
	Start string
	End   string
}

// Contains reports whether key lies inside the range.
func (r Range) Contains(key string) bool {
	return key >= r.Start && (r.End == "" || key < r.End)
}

// PrefixRange returns the range of all keys starting with prefix.
func PrefixRange(prefix string) Range {
	return Range{Start: prefix, End: PrefixEnd(prefix)}
}

// PrefixEnd returns the smallest key that is greater than every key with the
// given prefix, or "" if there is none (the prefix consists of 0xff bytes only).
func PrefixEnd(prefix string) string {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return string(end[:i+1])
		}
	}
	return ""
}

// --------------------------------------------------------------------------
// Lease records
// --------------------------------------------------------------------------

// Lease is a lock record held by an ILockStore.
type Lease struct {
	Value    []byte
	ExpireAt int64 // unix milliseconds, 0 = never
}

// NewLease creates a lease that expires ttl after now.
func NewLease(value []byte, now time.Time, ttl time.Duration) Lease {
	l := Lease{Value: append([]byte(nil), value...)}
	if ttl > 0 {
		l.ExpireAt = now.Add(ttl).UnixMilli()
	}
	return l
}

// Expired reports whether the lease has expired at nowMs (unix milliseconds).
func (l Lease) Expired(nowMs int64) bool {
	return l.ExpireAt != 0 && nowMs >= l.ExpireAt
}

// --------------------------------------------------------------------------
// Context helpers
// --------------------------------------------------------------------------

// CheckContext converts a done context into a RetCCancelled error.
func CheckContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return Errorf(RetCCancelled, "%v", err)
	}
	return nil
}
