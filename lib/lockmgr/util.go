package lockmgr

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Polling bounds of WithLock
const (
	minRetryInterval = time.Millisecond
	maxRetryInterval = 50 * time.Millisecond
)

// generateOwnerID creates a new unique owner ID (a random UUID)
func generateOwnerID() []byte {
	id := uuid.New()
	return id[:]
}

// WithLock acquires the lock for key, runs fn and releases the lock again.
// While the lock is held by someone else it polls with a growing interval
// until the lock is free or ctx is done. The error of fn is returned; a
// failed release is only returned if fn succeeded.
func WithLock(ctx context.Context, lm ILockManager, key string, fn func() error) (err error) {
	ownerID, err := acquire(ctx, lm, key)
	if err != nil {
		return err
	}
	defer func() {
		ok, relErr := lm.ReleaseLock(key, ownerID)
		if err == nil && relErr != nil {
			err = relErr
		} else if err == nil && !ok {
			err = fmt.Errorf("lock %q was taken over while held", key)
		}
	}()
	return fn()
}

func acquire(ctx context.Context, lm ILockManager, key string) ([]byte, error) {
	interval := minRetryInterval
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		ok, ownerID, err := lm.AcquireLock(key)
		if err != nil {
			return nil, err
		}
		if ok {
			return ownerID, nil
		}

		timer.Reset(interval)
		interval = min(interval*2, maxRetryInterval)
	}
}
