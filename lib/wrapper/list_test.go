package wrapper

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dStruct/lib/db/engines/oak"
	dbtesting "github.com/ValentinKolb/dStruct/lib/db/testing"
	"github.com/ValentinKolb/dStruct/lib/keys"
	"github.com/ValentinKolb/dStruct/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPrimes(t *testing.T) {
	s := newTestStore(t)

	l := openList[uint32](t, s, 0)
	for _, p := range []uint32{2, 3, 5, 7} {
		require.NoError(t, l.Push(p))
	}

	v, ok, err := l.Pop()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(7), v)
	assert.Equal(t, uint64(3), l.Len())

	// reopening recovers the length from the store
	l = openList[uint32](t, s, 0)
	assert.Equal(t, uint64(3), l.Len())
	v, ok, err = l.Pop()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(5), v)
}

func TestListLIFO(t *testing.T) {
	l := openList[int](t, newTestStore(t), 3)

	pushes, pops := 0, 0
	for round := 0; round < 5; round++ {
		for i := 0; i < 10; i++ {
			require.NoError(t, l.Push(round*100+i))
			pushes++
		}
		for i := 9; i >= 3; i-- {
			v, ok, err := l.Pop()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, round*100+i, v)
			pops++
		}
	}
	assert.Equal(t, uint64(pushes-pops), l.Len())
}

func TestListPopEmpty(t *testing.T) {
	faulty := dbtesting.NewFaultyStore(oak.NewOakDB(nil))
	l := NewList[int](store.NewStore(faulty), 1, new(atomic.Uint64))

	_, ok, err := l.Pop()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, faulty.Calls(dbtesting.OpRemove))
	assert.Equal(t, uint64(0), l.Len())
}

func TestListGetAndIter(t *testing.T) {
	l := openList[string](t, newTestStore(t), 2)
	require.NoError(t, l.Extend([]string{"a", "b", "c"}))

	v, ok, err := l.Get(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok, err = l.Get(3)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := l.Iter().Collect()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	it := l.Iter()
	require.True(t, it.Next())
	assert.Equal(t, uint64(0), it.Index())
	// the iterator sees elements pushed after it was created
	require.NoError(t, l.Push("d"))
	rest, err := it.Collect()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, rest)
}

func TestListClearIdempotent(t *testing.T) {
	s := newTestStore(t)
	l := openList[int](t, s, 4)
	require.NoError(t, l.Extend([]int{1, 2, 3}))

	require.NoError(t, l.Clear())
	assert.True(t, l.IsEmpty())
	require.NoError(t, l.Clear())
	assert.True(t, l.IsEmpty())
	assert.Equal(t, 0, s.DB().GetInfo().Entries)
}

func TestListSharedCounter(t *testing.T) {
	s := newTestStore(t)
	length := new(atomic.Uint64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			l := NewList[int](s, 5, length) // one handle per goroutine
			for i := 0; i < 50; i++ {
				assert.NoError(t, l.Push(g*1000+i))
			}
		}(g)
	}
	wg.Wait()

	l := NewList[int](s, 5, length)
	assert.Equal(t, uint64(400), l.Len())
	assert.Equal(t, 400, s.DB().GetInfo().Entries)
}

func TestListGap(t *testing.T) {
	s := newTestStore(t)
	l := openList[int](t, s, 6)
	require.NoError(t, l.Extend([]int{1, 2, 3}))

	// simulate a crash between claiming index 1 and writing it
	_, _, err := s.DB().Remove(keys.Index(6, 1))
	require.NoError(t, err)

	got, err := l.Iter().Collect()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got)

	v, ok, err := l.Pop()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok, err = l.Pop()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), l.Len())
}

func TestListEncodeFailureKeepsCounter(t *testing.T) {
	l := openList[any](t, newTestStore(t), 7)
	err := l.Push(func() {})
	assert.ErrorIs(t, err, store.ErrSerialization)
	assert.Equal(t, uint64(0), l.Len())
}

func TestListExtendFailFast(t *testing.T) {
	faulty := dbtesting.NewFaultyStore(oak.NewOakDB(nil))
	s := store.NewStore(faulty)
	l := NewList[int](s, 0, new(atomic.Uint64))

	faulty.FailAfter(2, dbtesting.OpInsert)
	err := l.Extend([]int{1, 2, 3, 4, 5})

	var extErr *ExtendError[int]
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, 3, extErr.Failed)
	assert.Equal(t, []int{4, 5}, extErr.Rest)
	assert.ErrorIs(t, err, store.ErrBackend)
	assert.ErrorIs(t, err, dbtesting.ErrInjected)

	// prior pushes are kept
	faulty.Heal()
	v, ok, err := l.Get(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestListRecoverIgnoresOtherPrefixes(t *testing.T) {
	s := newTestStore(t)
	other := openList[int](t, s, 9)
	require.NoError(t, other.Extend([]int{1, 2, 3}))

	n, err := RecoverListLength(s, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	n, err = RecoverListLength(s, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	n, err = RecoverListLength(s, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}
