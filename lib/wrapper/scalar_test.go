package wrapper

import (
	"testing"

	"github.com/ValentinKolb/dStruct/lib/db/engines/maple"
	"github.com/ValentinKolb/dStruct/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type level struct {
	Name string
	N    int
}

func (level) Default() level {
	return level{Name: "normal", N: 3}
}

func TestDefaultOf(t *testing.T) {
	assert.Equal(t, 0, DefaultOf[int]())
	assert.Equal(t, "", DefaultOf[string]())
	assert.Equal(t, level{Name: "normal", N: 3}, DefaultOf[level]())
}

func TestDefaultTrait(t *testing.T) {
	s := newTestStore(t)
	f := NewDefaultTrait[uint8](s, 0)

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, uint8(0), v)

	require.NoError(t, f.Set(42))
	v, err = f.Get()
	require.NoError(t, err)
	assert.Equal(t, uint8(42), v)
	assert.Equal(t, 1, s.DB().GetInfo().Entries)

	// the default is stored as an absent key
	require.NoError(t, f.Set(0))
	_, ok, err := s.DB().Get([]byte{0})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDefaultTraitWithDefaulter(t *testing.T) {
	s := newTestStore(t)
	f := NewDefaultTrait[level](s, 1)

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, level{Name: "normal", N: 3}, v)

	require.NoError(t, f.Set(level{Name: "high", N: 5}))
	require.NoError(t, f.Set(level{Name: "normal", N: 3}))
	assert.Equal(t, 0, s.DB().GetInfo().Entries)
}

func TestDefaultValueRawState(t *testing.T) {
	s := newTestStore(t)
	f := NewDefaultValue(s, 3, "fallback")
	assert.Equal(t, "fallback", f.Default())

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	_, ok, err := s.DB().Get([]byte{3})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Set("override"))
	raw, ok, err := s.DB().Get([]byte{3})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, raw)

	require.NoError(t, f.Set("fallback"))
	_, ok, err = s.DB().Get([]byte{3})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDefaultUpdate(t *testing.T) {
	s := newTestStore(t)
	f := NewDefaultValue(s, 0, 10)

	// absence passes the default to f
	require.NoError(t, f.Update(func(v int) int { return v + 1 }))
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 11, v)

	// updating back to the default removes the key
	require.NoError(t, f.Update(func(v int) int { return v - 1 }))
	assert.Equal(t, 0, s.DB().GetInfo().Entries)
}

func TestDefaultConditionalUpdate(t *testing.T) {
	s := newTestStore(t)
	f := NewDefaultValue(s, 0, 10)

	// the default as expected value matches the absent key
	swapped, err := f.ConditionalUpdate(10, 20)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = f.ConditionalUpdate(10, 30)
	require.NoError(t, err)
	assert.False(t, swapped)

	// the default as new value deletes
	swapped, err = f.ConditionalUpdate(20, 10)
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, 0, s.DB().GetInfo().Entries)

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 10, v)
}

func TestScalarsRequireAtomicForUpdate(t *testing.T) {
	s := store.NewStore(orderedOnlyBackend(t))
	f := NewDefaultTrait[int](s, 0)

	err := f.Update(func(v int) int { return v + 1 })
	assert.ErrorIs(t, err, store.ErrUnsupported)
	_, err = f.ConditionalUpdate(0, 1)
	assert.ErrorIs(t, err, store.ErrUnsupported)

	// Set and Get do not need it
	require.NoError(t, f.Set(1))
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestOption(t *testing.T) {
	s := newTestStore(t)
	o := NewOption[string](s, 2)

	none, err := o.IsNone()
	require.NoError(t, err)
	assert.True(t, none)
	_, ok, err := o.Get()
	require.NoError(t, err)
	assert.False(t, ok)

	// updating an unset option does nothing
	require.NoError(t, o.Update(func(v string) string { return v + "!" }))
	none, err = o.IsNone()
	require.NoError(t, err)
	assert.True(t, none)

	// the zero value is a real value for Option
	require.NoError(t, o.Set(""))
	some, err := o.IsSome()
	require.NoError(t, err)
	assert.True(t, some)

	require.NoError(t, o.Update(func(v string) string { return v + "!" }))
	v, ok, err := o.Get()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "!", v)

	swapped, err := o.ConditionalUpdate(store.Some("!"), store.None[string]())
	require.NoError(t, err)
	assert.True(t, swapped)
	none, err = o.IsNone()
	require.NoError(t, err)
	assert.True(t, none)

	swapped, err = o.ConditionalUpdate(store.None[string](), store.Some("x"))
	require.NoError(t, err)
	assert.True(t, swapped)

	require.NoError(t, o.Clear())
	require.NoError(t, o.Clear())
	assert.Equal(t, 0, s.DB().GetInfo().Entries)
}

func TestScalarsOnHashBackend(t *testing.T) {
	bs := maple.NewMapleDB(nil)
	defer bs.Close()
	s := store.NewStore(bs)

	f := NewDefaultValue(s, 0, 1.5)
	require.NoError(t, f.Update(func(v float64) float64 { return v * 2 }))
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}
