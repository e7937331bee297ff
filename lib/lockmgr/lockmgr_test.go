package lockmgr

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dStruct/lib/db/engines/oak"
	"github.com/ValentinKolb/dStruct/lib/keys"
	"github.com/ValentinKolb/dStruct/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.Store {
	bs := oak.NewOakDB(nil)
	t.Cleanup(func() { bs.Close() })
	return store.NewStore(bs)
}

func TestAcquireRelease(t *testing.T) {
	s := newStore(t)
	lm := NewLockManager(s)

	ok, owner, err := lm.AcquireLock("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, owner, 16)

	// a second acquire fails while the lock is held
	ok, _, err = lm.AcquireLock("a")
	require.NoError(t, err)
	assert.False(t, ok)

	// other keys are independent
	ok, _, err = NewLockManager(s).AcquireLock("b")
	require.NoError(t, err)
	assert.True(t, ok)

	// only the owner can release
	ok, err = lm.ReleaseLock("a", []byte("someone else"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = lm.ReleaseLock("a", owner)
	require.NoError(t, err)
	assert.True(t, ok)

	// releasing a missing lock succeeds
	ok, err = lm.ReleaseLock("a", owner)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockRecordsUseReservedPrefix(t *testing.T) {
	s := newStore(t)
	_, _, err := NewLockManager(s).AcquireLock("field")
	require.NoError(t, err)

	k, _, found, err := store.RawGetGT(s, []byte{byte(keys.MaxPrefix)})
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, keys.LockPrefix.Owns(k))
}

func TestWithLockSerializes(t *testing.T) {
	s := newStore(t)
	lm := NewLockManager(s)

	counter := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				err := WithLock(context.Background(), lm, "counter", func() error {
					v := counter
					time.Sleep(10 * time.Microsecond)
					counter = v + 1
					return nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 160, counter)
	assert.Equal(t, 0, s.DB().GetInfo().Entries)
}

func TestWithLockContext(t *testing.T) {
	lm := NewLockManager(newStore(t))
	ok, _, err := lm.AcquireLock("busy")
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err = WithLock(ctx, lm, "busy", func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}

func TestWithLockReturnsFnError(t *testing.T) {
	s := newStore(t)
	lm := NewLockManager(s)

	err := WithLock(context.Background(), lm, "k", func() error {
		return store.ErrInvalidOperation
	})
	assert.ErrorIs(t, err, store.ErrInvalidOperation)

	// the lock was released anyway
	ok, _, err := lm.AcquireLock("k")
	require.NoError(t, err)
	assert.True(t, ok)
}
