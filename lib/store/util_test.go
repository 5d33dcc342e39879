package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrefixRange(t *testing.T) {
	r := PrefixRange("ab")
	assert.Equal(t, Range{Start: "ab", End: "ac"}, r)
	assert.True(t, r.Contains("ab"))
	assert.True(t, r.Contains("abzzz"))
	assert.False(t, r.Contains("ac"))
	assert.False(t, r.Contains("aa"))

	assert.Equal(t, "b", PrefixEnd("a\xff"))
	assert.Equal(t, "", PrefixEnd("\xff\xff"))
	assert.Equal(t, "", PrefixEnd(""))

	unbounded := Range{Start: "m"}
	assert.True(t, unbounded.Contains("zzzz"))
	assert.False(t, unbounded.Contains("a"))
}

func TestErrorCodes(t *testing.T) {
	err := fmt.Errorf("commit: %w", Errorf(RetCConflict, "key %q changed", "a"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrReadOnly))
	assert.Equal(t, RetCConflict, CodeOf(err))
	assert.Equal(t, RetCSuccess, CodeOf(nil))
	assert.Equal(t, RetCInternalError, CodeOf(errors.New("boom")))
	assert.Contains(t, err.Error(), "Conflict")
}

func TestLease(t *testing.T) {
	now := time.UnixMilli(1000)

	forever := NewLease([]byte("a"), now, 0)
	assert.False(t, forever.Expired(1<<60))

	l := NewLease([]byte("a"), now, 10*time.Millisecond)
	assert.False(t, l.Expired(1009))
	assert.True(t, l.Expired(1010))
}
