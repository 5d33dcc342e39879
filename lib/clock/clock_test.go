package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemClockNow(t *testing.T) {
	clk := NewSystemClock()
	before := uint64(time.Now().UnixMilli())
	now := uint64(clk.Now())
	after := uint64(time.Now().UnixMilli())

	assert.GreaterOrEqual(t, now, before)
	assert.LessOrEqual(t, now, after)
}

func TestFakeClock(t *testing.T) {
	clk := NewFakeClock(42)
	assert.Equal(t, Timestamp(42), clk.Now())
	assert.Equal(t, Timestamp(42), clk.Now(), "reading must not advance a fake clock")

	clk.Set(100)
	assert.Equal(t, Timestamp(100), clk.Now())

	clk.Set(7)
	assert.Equal(t, Timestamp(7), clk.Now(), "a fake clock may be set backwards")
}

func TestIncFakeClockSequential(t *testing.T) {
	clk := NewIncFakeClock(1000, 5*time.Millisecond)

	prev := Timestamp(1000)
	for i := 0; i < 100; i++ {
		now := clk.Now()
		require.Equal(t, prev+5, now)
		prev = now
	}
}

func TestIncFakeClockSubMillisecondIncrement(t *testing.T) {
	clk := NewIncFakeClock(0, time.Microsecond)
	assert.Equal(t, time.Millisecond, clk.Increment())
	assert.Equal(t, Timestamp(1), clk.Now())
	assert.Equal(t, Timestamp(2), clk.Now())
}

func TestIncFakeClockConcurrent(t *testing.T) {
	const (
		workers = 16
		reads   = 500
	)
	clk := NewIncFakeClock(0, time.Millisecond)

	var (
		mu   sync.Mutex
		seen = make(map[Timestamp]struct{}, workers*reads)
		wg   sync.WaitGroup
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			local := make([]Timestamp, 0, reads)
			for i := 0; i < reads; i++ {
				local = append(local, clk.Now())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, ts := range local {
				seen[ts] = struct{}{}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*reads, "concurrent readers observed duplicate timestamps")
	assert.Equal(t, Timestamp(workers*reads), clk.Now()-1)
}

func TestTimestampArithmetic(t *testing.T) {
	ts := Timestamp(1_000)
	assert.Equal(t, Timestamp(1_250), ts.Add(250*time.Millisecond))
	assert.Equal(t, Timestamp(1_000), ts.Add(999*time.Microsecond))
	assert.Equal(t, Timestamp(0), ts.Add(-time.Hour))
	assert.Equal(t, 750*time.Millisecond, Timestamp(1_750).Sub(ts))
	assert.Equal(t, int64(1_000), ts.Time().UnixMilli())
}
