package wrapper

import (
	"bytes"

	"github.com/ValentinKolb/dStruct/lib/keys"
	"github.com/ValentinKolb/dStruct/lib/store"
)

// Defaulter is implemented by types with a canonical default other than
// their zero value.
type Defaulter[T any] interface {
	Default() T
}

// DefaultOf returns the canonical default of T: T.Default() if T (or *T)
// implements Defaulter[T], the zero value otherwise.
func DefaultOf[T any]() T {
	var zero T
	if d, ok := any(zero).(Defaulter[T]); ok {
		return d.Default()
	}
	if d, ok := any(&zero).(Defaulter[T]); ok {
		return d.Default()
	}
	return zero
}

// --------------------------------------------------------------------------
// Default policies
// --------------------------------------------------------------------------

// defaulted is a scalar stored under the bare prefix key whose default is
// never written: a value equal to the default (by encoding) is stored as an
// absent key. This holds for Set, Update and ConditionalUpdate alike.
type defaulted[T any] struct {
	_      noCopy
	s      *store.Store
	prefix keys.Prefix
	def    T
}

// Default returns the value reported for an absent key
func (d *defaulted[T]) Default() T {
	return d.def
}

// Get returns the stored value or the default
func (d *defaulted[T]) Get() (T, error) {
	raw, ok, err := store.RawGet(d.s, d.prefix.Scalar())
	if err != nil {
		return d.def, err
	}
	if !ok {
		return d.def, nil
	}
	return store.DecodeValue[T](d.s, raw)
}

// Set stores v. Setting the default removes the key.
func (d *defaulted[T]) Set(v T) error {
	enc, isDef, err := d.encode(v)
	if err != nil {
		return err
	}
	if isDef {
		_, _, err = store.RawRemove(d.s, d.prefix.Scalar())
		return err
	}
	_, _, err = store.RawInsert(d.s, d.prefix.Scalar(), enc)
	return err
}

// Update replaces the value with f(current) in one atomic step. An absent
// key passes the default to f. Requires the Atomic capability.
func (d *defaulted[T]) Update(f func(T) T) error {
	defEnc, err := d.s.EncodeValue(d.def)
	if err != nil {
		return err
	}
	var encErr error
	err = store.AtomicUpdate(d.s, d.prefix, func(old T, loaded bool) (T, bool) {
		if !loaded {
			old = d.def
		}
		next := f(old)
		enc, err := d.s.EncodeValue(next)
		if err != nil {
			// keep the current state, the error surfaces below
			encErr = err
			return old, loaded
		}
		return next, !bytes.Equal(enc, defEnc)
	})
	if err != nil {
		return err
	}
	return encErr
}

// ConditionalUpdate stores next if the current value equals old. An old
// equal to the default matches an absent key, a next equal to the default
// removes the key. Requires the Atomic capability.
func (d *defaulted[T]) ConditionalUpdate(old, next T) (bool, error) {
	expEnc, expDef, err := d.encode(old)
	if err != nil {
		return false, err
	}
	nextEnc, nextDef, err := d.encode(next)
	if err != nil {
		return false, err
	}
	if expDef {
		expEnc = nil
	}
	if nextDef {
		nextEnc = nil
	}
	return store.ConditionalUpdateRaw(d.s, d.prefix.Scalar(), expEnc, nextEnc)
}

// encode returns the encoding of v and whether it equals the default
func (d *defaulted[T]) encode(v T) ([]byte, bool, error) {
	enc, err := d.s.EncodeValue(v)
	if err != nil {
		return nil, false, err
	}
	defEnc, err := d.s.EncodeValue(d.def)
	if err != nil {
		return nil, false, err
	}
	return enc, bytes.Equal(enc, defEnc), nil
}

// DefaultTrait is a scalar whose absence means the canonical default of T
// (see DefaultOf).
type DefaultTrait[T any] struct {
	defaulted[T]
}

// NewDefaultTrait creates a scalar handle with the default of T
func NewDefaultTrait[T any](s *store.Store, prefix keys.Prefix) *DefaultTrait[T] {
	return &DefaultTrait[T]{defaulted[T]{s: s, prefix: prefix, def: DefaultOf[T]()}}
}

// DefaultValue is a scalar whose absence means a caller supplied value,
// computed once when the schema is opened.
type DefaultValue[T any] struct {
	defaulted[T]
}

// NewDefaultValue creates a scalar handle with the default def
func NewDefaultValue[T any](s *store.Store, prefix keys.Prefix, def T) *DefaultValue[T] {
	return &DefaultValue[T]{defaulted[T]{s: s, prefix: prefix, def: def}}
}

// --------------------------------------------------------------------------
// Option
// --------------------------------------------------------------------------

// Option is a scalar that is either set or absent
type Option[T any] struct {
	_      noCopy
	s      *store.Store
	prefix keys.Prefix
}

// NewOption creates an optional scalar handle
func NewOption[T any](s *store.Store, prefix keys.Prefix) *Option[T] {
	return &Option[T]{s: s, prefix: prefix}
}

// Get returns the value and whether it is set
func (o *Option[T]) Get() (T, bool, error) {
	var zero T
	raw, ok, err := store.RawGet(o.s, o.prefix.Scalar())
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := store.DecodeValue[T](o.s, raw)
	return v, err == nil, err
}

// Set stores v
func (o *Option[T]) Set(v T) error {
	enc, err := o.s.EncodeValue(v)
	if err != nil {
		return err
	}
	_, _, err = store.RawInsert(o.s, o.prefix.Scalar(), enc)
	return err
}

// Clear unsets the value
func (o *Option[T]) Clear() error {
	_, _, err := store.RawRemove(o.s, o.prefix.Scalar())
	return err
}

// IsSome reports whether the value is set
func (o *Option[T]) IsSome() (bool, error) {
	_, ok, err := store.RawGet(o.s, o.prefix.Scalar())
	return ok, err
}

// IsNone reports whether the value is unset
func (o *Option[T]) IsNone() (bool, error) {
	ok, err := o.IsSome()
	return !ok, err
}

// Update replaces a set value with f(current) in one atomic step. An unset
// value stays unset. Requires the Atomic capability.
func (o *Option[T]) Update(f func(T) T) error {
	return store.AtomicUpdate(o.s, o.prefix, func(old T, loaded bool) (T, bool) {
		if !loaded {
			return old, false
		}
		return f(old), true
	})
}

// ConditionalUpdate stores next if the current state equals old. None on
// either side stands for the unset state. Requires the Atomic capability.
func (o *Option[T]) ConditionalUpdate(old, next store.Maybe[T]) (bool, error) {
	return store.ConditionalUpdate(o.s, o.prefix, old, next)
}
