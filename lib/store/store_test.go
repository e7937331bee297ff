package store

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dStruct/lib/codec"
	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/db/engines/maple"
	"github.com/ValentinKolb/dStruct/lib/db/engines/oak"
	dbtesting "github.com/ValentinKolb/dStruct/lib/db/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int
}

func newStore(t *testing.T, opts ...Option) *Store {
	bs := oak.NewOakDB(nil)
	t.Cleanup(func() { bs.Close() })
	return NewStore(bs, opts...)
}

func TestInsertGetRemove(t *testing.T) {
	for _, c := range []codec.ValueCodec{codec.Gob(), codec.JSON()} {
		t.Run(c.Name(), func(t *testing.T) {
			s := newStore(t, WithCodec(c))

			_, loaded, err := Insert(s, "a", point{1, 2})
			require.NoError(t, err)
			assert.False(t, loaded)

			old, loaded, err := Insert(s, "a", point{3, 4})
			require.NoError(t, err)
			assert.True(t, loaded)
			assert.Equal(t, point{1, 2}, old)

			v, ok, err := Get[point](s, "a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, point{3, 4}, v)

			ok, err = Contains(s, "a")
			require.NoError(t, err)
			assert.True(t, ok)

			old, loaded, err = Remove[point](s, "a")
			require.NoError(t, err)
			assert.True(t, loaded)
			assert.Equal(t, point{3, 4}, old)

			_, ok, err = Get[point](s, "a")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSerializationErrorLeavesStoreUnchanged(t *testing.T) {
	s := newStore(t)

	_, _, err := Insert(s, "k", "v")
	require.NoError(t, err)

	// functions cannot be encoded
	_, _, err = Insert[any](s, "k", func() {})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerialization)

	v, ok, err := Get[string](s, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	// keys with unsupported types fail before the backend is touched
	_, _, err = Insert(s, map[string]int{}, "v")
	assert.ErrorIs(t, err, ErrSerialization)
	assert.Equal(t, 1, s.DB().GetInfo().Entries)
}

func TestDecodeError(t *testing.T) {
	s := newStore(t)

	_, _, err := s.DB().Insert(mustKey(t, s, "k"), []byte("garbage"))
	require.NoError(t, err)

	_, _, err = Get[point](s, "k")
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestBackendErrorsAreWrapped(t *testing.T) {
	faulty := dbtesting.NewFaultyStore(oak.NewOakDB(nil))
	s := NewStore(faulty)
	faulty.Fail()

	_, _, err := Get[string](s, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackend)
	assert.ErrorIs(t, err, dbtesting.ErrInjected)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, RetCBackend, se.Code)
	assert.Contains(t, se.Error(), "code Backend")
}

func TestUnsupportedCapability(t *testing.T) {
	s := NewStore(maple.NewMapleDB(nil))
	defer s.DB().Close()

	_, err := s.Ordered()
	assert.ErrorIs(t, err, ErrUnsupported)

	_, _, _, err = GetLT[string, string](s, "k")
	assert.ErrorIs(t, err, ErrUnsupported)

	err = Range[string, string](s, nil, nil, func(string, string) bool { return true })
	assert.ErrorIs(t, err, ErrUnsupported)

	// maple is atomic
	_, err = s.Atomic()
	assert.NoError(t, err)
}

func TestAtomicUpdate(t *testing.T) {
	s := newStore(t)

	incr := func(old int, loaded bool) (int, bool) { return old + 1, true }
	for i := 0; i < 5; i++ {
		require.NoError(t, AtomicUpdate(s, "counter", incr))
	}
	v, _, err := Get[int](s, "counter")
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	// returning false removes the key
	require.NoError(t, AtomicUpdate(s, "counter", func(int, bool) (int, bool) { return 0, false }))
	ok, err := Contains(s, "counter")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAtomicUpdateDecodeFailureKeepsBytes(t *testing.T) {
	s := newStore(t)
	key := mustKey(t, s, "k")
	_, _, err := s.DB().Insert(key, []byte("garbage"))
	require.NoError(t, err)

	called := false
	err = AtomicUpdate(s, "k", func(old point, loaded bool) (point, bool) {
		called = true
		return point{}, true
	})
	assert.ErrorIs(t, err, ErrSerialization)
	assert.False(t, called)

	raw, _, err := s.DB().Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("garbage"), raw)
}

func TestConditionalUpdate(t *testing.T) {
	s := newStore(t)

	// None expected: only succeeds on an absent key
	swapped, err := ConditionalUpdate(s, "k", None[int](), Some(1))
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = ConditionalUpdate(s, "k", None[int](), Some(2))
	require.NoError(t, err)
	assert.False(t, swapped)

	swapped, err = ConditionalUpdate(s, "k", Some(7), Some(2))
	require.NoError(t, err)
	assert.False(t, swapped)

	swapped, err = ConditionalUpdate(s, "k", Some(1), Some(2))
	require.NoError(t, err)
	assert.True(t, swapped)

	// None as next removes
	swapped, err = ConditionalUpdate(s, "k", Some(2), None[int]())
	require.NoError(t, err)
	assert.True(t, swapped)

	ok, err := Contains(s, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMaybe(t *testing.T) {
	v, ok := Some("x").Get()
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	n := None[string]()
	assert.False(t, n.IsSome())
	v, ok = n.Get()
	assert.False(t, ok)
	assert.Equal(t, "", v)
}

func TestNeighbours(t *testing.T) {
	s := newStore(t)
	for _, k := range []uint64{10, 20, 30} {
		_, _, err := Insert(s, k, k*2)
		require.NoError(t, err)
	}

	k, v, found, err := GetLT[uint64, uint64](s, uint64(20))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(10), k)
	assert.Equal(t, uint64(20), v)

	k, _, found, err = GetGT[uint64, uint64](s, uint64(20))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(30), k)

	_, _, found, err = GetGT[uint64, uint64](s, uint64(30))
	require.NoError(t, err)
	assert.False(t, found)
}

// orderedOnly hides the Ranged capability of oak to exercise the GetGT walk
type orderedOnly struct {
	db.ByteStore
}

func (o orderedOnly) SupportsFeature(f db.Feature) bool {
	return f&db.FeatureRanged == 0 && o.ByteStore.SupportsFeature(f)
}

func (o orderedOnly) GetLT(key []byte) ([]byte, []byte, bool, error) {
	return o.ByteStore.(db.Ordered).GetLT(key)
}

func (o orderedOnly) GetGT(key []byte) ([]byte, []byte, bool, error) {
	return o.ByteStore.(db.Ordered).GetGT(key)
}

func TestRange(t *testing.T) {
	stores := map[string]*Store{
		"ranged":  newStore(t),
		"ordered": NewStore(orderedOnly{oak.NewOakDB(nil)}),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			for i := uint64(0); i < 10; i++ {
				_, _, err := Insert(s, i, i)
				require.NoError(t, err)
			}

			var got []uint64
			err := Range(s, uint64(3), uint64(7), func(k, v uint64) bool {
				got = append(got, k)
				return true
			})
			require.NoError(t, err)
			assert.Equal(t, []uint64{3, 4, 5, 6}, got)

			got = nil
			err = Range(s, nil, nil, func(k, v uint64) bool {
				got = append(got, k)
				return len(got) < 4
			})
			require.NoError(t, err)
			assert.Equal(t, []uint64{0, 1, 2, 3}, got)
		})
	}
}

func TestRangeDecodeError(t *testing.T) {
	s := newStore(t)
	_, _, err := Insert(s, "a", 1)
	require.NoError(t, err)

	err = Range(s, nil, nil, func(k uint64, v int) bool { return true })
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestErrorCodes(t *testing.T) {
	err := WrapError(RetCInvalidOperation, "pop", errors.New("boom"))
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.NotErrorIs(t, err, ErrBackend)
	assert.Equal(t, "StoreError (code InvalidOperation): pop: boom", err.Error())
	assert.Equal(t, "Unknown", RetCode(99).String())
}

func mustKey(t *testing.T, s *Store, key any) []byte {
	k, err := s.EncodeKey(key)
	require.NoError(t, err)
	return k
}
