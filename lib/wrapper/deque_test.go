package wrapper

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dStruct/lib/db/engines/oak"
	dbtesting "github.com/ValentinKolb/dStruct/lib/db/testing"
	"github.com/ValentinKolb/dStruct/lib/keys"
	"github.com/ValentinKolb/dStruct/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDequeOrder(t *testing.T) {
	d := openDeque[int](t, newTestStore(t), 0)

	require.NoError(t, d.PushFront(2))
	require.NoError(t, d.PushFront(1))
	require.NoError(t, d.PushBack(3))

	got, err := d.Iter().Collect()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, uint64(3), d.Len())

	v, ok, err := d.Get(0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok, err = d.Get(3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDequeAgainstSlice(t *testing.T) {
	d := openDeque[int](t, newTestStore(t), 1)
	var model []int

	// deterministic mix of operations from both ends
	for i := 0; i < 200; i++ {
		switch i % 7 {
		case 0, 3, 5:
			require.NoError(t, d.PushBack(i))
			model = append(model, i)
		case 1, 4:
			require.NoError(t, d.PushFront(i))
			model = append([]int{i}, model...)
		case 2:
			v, ok, err := d.PopFront()
			require.NoError(t, err)
			require.Equal(t, len(model) > 0, ok)
			if ok {
				assert.Equal(t, model[0], v)
				model = model[1:]
			}
		case 6:
			v, ok, err := d.PopBack()
			require.NoError(t, err)
			require.Equal(t, len(model) > 0, ok)
			if ok {
				assert.Equal(t, model[len(model)-1], v)
				model = model[:len(model)-1]
			}
		}
		require.Equal(t, uint64(len(model)), d.Len())
	}

	got, err := d.Iter().Collect()
	require.NoError(t, err)
	assert.Equal(t, model, got)
}

func TestDequePopEmpty(t *testing.T) {
	faulty := dbtesting.NewFaultyStore(oak.NewOakDB(nil))
	d := openDeque[int](t, store.NewStore(faulty), 2)

	for i := 0; i < 3; i++ {
		_, ok, err := d.PopBack()
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, err = d.PopFront()
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, uint64(0), d.Len())
	assert.Equal(t, 0, faulty.Calls(dbtesting.OpRemove))

	// the window did not move
	require.NoError(t, d.PushBack(1))
	_, _, found, err := faulty.GetLT(keys.Max(2))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, InitialTail, d.tail.Load()-1)
}

func TestDequeRecover(t *testing.T) {
	s := newTestStore(t)
	d := openDeque[string](t, s, 3)
	require.NoError(t, d.Extend([]string{"b", "c"}))
	require.NoError(t, d.PushFront("a"))

	// a neighbouring prefix must not confuse the recovery
	require.NoError(t, openList[int](t, s, 4).Push(1))

	d = openDeque[string](t, s, 3)
	assert.Equal(t, uint64(3), d.Len())
	got, err := d.Iter().Collect()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	v, ok, err := d.PopFront()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestDequeRecoverEmpty(t *testing.T) {
	h, tl, err := RecoverDequeCursors(newTestStore(t), 5)
	require.NoError(t, err)
	assert.Equal(t, InitialHead, h)
	assert.Equal(t, InitialTail, tl)
	assert.Equal(t, uint64(1), tl-h)
}

func TestDequeClearIdempotent(t *testing.T) {
	s := newTestStore(t)
	d := openDeque[int](t, s, 6)
	require.NoError(t, d.Extend([]int{1, 2, 3}))
	require.NoError(t, d.PushFront(0))

	require.NoError(t, d.Clear())
	assert.True(t, d.IsEmpty())
	require.NoError(t, d.Clear())
	assert.True(t, d.IsEmpty())
	assert.Equal(t, 0, s.DB().GetInfo().Entries)
}

func TestDequeDegenerateWindowPanics(t *testing.T) {
	head, tail := new(atomic.Uint64), new(atomic.Uint64)
	head.Store(10)
	tail.Store(10)
	assert.Panics(t, func() {
		NewDeque[int](newTestStore(t), 0, head, tail)
	})
}

// Cursors placed at the ends of the index space. Pushing past either end
// must fail without moving the cursors or writing to the store.
func TestDequeIndexBoundary(t *testing.T) {
	s := newTestStore(t)

	t.Run("back", func(t *testing.T) {
		head, tail := new(atomic.Uint64), new(atomic.Uint64)
		head.Store(math.MaxUint64 - 2)
		tail.Store(math.MaxUint64 - 1)
		d := NewDeque[int](s, 7, head, tail)

		require.NoError(t, d.PushBack(1)) // claims MaxUint64-1
		assert.Equal(t, uint64(math.MaxUint64), tail.Load())

		err := d.PushBack(2)
		assert.ErrorIs(t, err, ErrIndexExhausted)
		assert.ErrorIs(t, err, store.ErrInvalidOperation)
		assert.Equal(t, uint64(math.MaxUint64), tail.Load())
		assert.Equal(t, uint64(1), d.Len())

		// the other end still works
		require.NoError(t, d.PushFront(0))
		got, err := d.Iter().Collect()
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, got)

		v, ok, err := d.PopBack()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, v)
		require.NoError(t, d.PushBack(3))
	})

	t.Run("front", func(t *testing.T) {
		head, tail := new(atomic.Uint64), new(atomic.Uint64)
		head.Store(1)
		tail.Store(2)
		d := NewDeque[int](s, 8, head, tail)

		require.NoError(t, d.PushFront(1)) // claims 1
		assert.Equal(t, uint64(0), head.Load())

		err := d.PushFront(2)
		assert.ErrorIs(t, err, ErrIndexExhausted)
		assert.Equal(t, uint64(0), head.Load())
		assert.Equal(t, uint64(1), d.Len())

		_, ok, err := s.DB().Get(keys.Index(8, 0))
		require.NoError(t, err)
		assert.False(t, ok)

		v, ok, err := d.PopFront()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, v)
		assert.True(t, d.IsEmpty())
	})
}

func TestDequeExtendFailFast(t *testing.T) {
	faulty := dbtesting.NewFaultyStore(oak.NewOakDB(nil))
	d := openDeque[string](t, store.NewStore(faulty), 0)

	faulty.FailAfter(1, dbtesting.OpInsert)
	err := d.Extend([]string{"x", "y", "z"})

	var extErr *ExtendError[string]
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "y", extErr.Failed)
	assert.Equal(t, []string{"z"}, extErr.Rest)
}
