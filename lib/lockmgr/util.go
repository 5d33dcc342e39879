package lockmgr

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("lockmgr")

const (
	minPollInterval = 2 * time.Millisecond
	maxPollInterval = 100 * time.Millisecond
)

// generateOwnerID creates a new unique owner ID (a random UUID).
func generateOwnerID() ([]byte, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return id[:], nil
}

// poll calls try until it reports success, fails or ctx is done. The wait
// between attempts doubles up to maxPollInterval.
func poll(ctx context.Context, try func() (bool, error)) error {
	wait := minPollInterval
	for {
		ok, err := try()
		if err != nil || ok {
			return err
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait = min(wait*2, maxPollInterval)
	}
}
