package store

import (
	"github.com/ValentinKolb/dStruct/lib/db"
)

// --------------------------------------------------------------------------
// Maybe
// --------------------------------------------------------------------------

// Maybe is an optional value. In ConditionalUpdate None stands for "key
// absent" on the expected side and for "remove the key" on the new side.
type Maybe[V any] struct {
	value V
	ok    bool
}

// Some wraps a present value
func Some[V any](v V) Maybe[V] {
	return Maybe[V]{value: v, ok: true}
}

// None returns an absent value
func None[V any]() Maybe[V] {
	return Maybe[V]{}
}

// Get returns the value and whether it is present
func (m Maybe[V]) Get() (V, bool) {
	return m.value, m.ok
}

// IsSome reports whether the value is present
func (m Maybe[V]) IsSome() bool {
	return m.ok
}

func (s *Store) encodeMaybe(m any, ok bool) ([]byte, error) {
	if !ok {
		return nil, nil
	}
	return s.EncodeValue(m)
}

// --------------------------------------------------------------------------
// Atomic operations
// --------------------------------------------------------------------------

// AtomicUpdate reads the value under key, passes it to op and stores the
// result. op returning false removes the key. A decode or encode failure
// leaves the stored bytes untouched and is returned as a serialization error.
func AtomicUpdate[V any](s *Store, key any, op func(old V, loaded bool) (V, bool)) error {
	a, err := s.Atomic()
	if err != nil {
		return err
	}
	k, err := s.EncodeKey(key)
	if err != nil {
		return err
	}

	var opErr error
	err = a.AtomicUpdate(k, func(old []byte, loaded bool) ([]byte, bool) {
		opErr = nil
		prev, _, err := decodeOld[V](s, old, loaded)
		if err != nil {
			opErr = err
			return old, loaded
		}
		next, keep := op(prev, loaded)
		if !keep {
			return nil, false
		}
		enc, err := s.EncodeValue(next)
		if err != nil {
			opErr = err
			return old, loaded
		}
		return enc, true
	})
	if err != nil {
		return backend("atomic update", err)
	}
	return opErr
}

// ConditionalUpdate replaces the value under key with next if the current
// value encodes to the same bytes as expected. It returns false without an
// error when the comparison fails.
func ConditionalUpdate[V any](s *Store, key any, expected, next Maybe[V]) (bool, error) {
	if _, err := s.Atomic(); err != nil {
		return false, err
	}
	k, err := s.EncodeKey(key)
	if err != nil {
		return false, err
	}
	exp, err := s.encodeMaybe(expected.value, expected.ok)
	if err != nil {
		return false, err
	}
	nv, err := s.encodeMaybe(next.value, next.ok)
	if err != nil {
		return false, err
	}
	return ConditionalUpdateRaw(s, k, exp, nv)
}

// ConditionalUpdateRaw is ConditionalUpdate on already encoded bytes.
// A nil expected means "absent", a nil next means "remove".
func ConditionalUpdateRaw(s *Store, key, expected, next []byte) (bool, error) {
	a, err := s.Atomic()
	if err != nil {
		return false, err
	}
	swapped, err := a.ConditionalUpdate(key, expected, next)
	if err != nil {
		return false, backend("conditional update", err)
	}
	return swapped, nil
}

// --------------------------------------------------------------------------
// Ordered operations
// --------------------------------------------------------------------------

// RawGetLT returns the entry with the greatest key strictly below key
func RawGetLT(s *Store, key []byte) ([]byte, []byte, bool, error) {
	o, err := s.Ordered()
	if err != nil {
		return nil, nil, false, err
	}
	k, v, found, err := o.GetLT(key)
	if err != nil {
		return nil, nil, false, backend("get lt", err)
	}
	return k, v, found, nil
}

// RawGetGT returns the entry with the smallest key strictly above key
func RawGetGT(s *Store, key []byte) ([]byte, []byte, bool, error) {
	o, err := s.Ordered()
	if err != nil {
		return nil, nil, false, err
	}
	k, v, found, err := o.GetGT(key)
	if err != nil {
		return nil, nil, false, backend("get gt", err)
	}
	return k, v, found, nil
}

// GetLT returns the typed entry with the greatest key strictly below key.
// The found key must decode as a K.
func GetLT[K, V any](s *Store, key any) (K, V, bool, error) {
	return getNeighbour[K, V](s, key, RawGetLT)
}

// GetGT returns the typed entry with the smallest key strictly above key.
func GetGT[K, V any](s *Store, key any) (K, V, bool, error) {
	return getNeighbour[K, V](s, key, RawGetGT)
}

func getNeighbour[K, V any](s *Store, key any, get func(*Store, []byte) ([]byte, []byte, bool, error)) (K, V, bool, error) {
	var (
		zk K
		zv V
	)
	enc, err := s.EncodeKey(key)
	if err != nil {
		return zk, zv, false, err
	}
	rk, rv, found, err := get(s, enc)
	if err != nil || !found {
		return zk, zv, false, err
	}
	k, err := DecodeKey[K](rk)
	if err != nil {
		return zk, zv, false, err
	}
	v, err := DecodeValue[V](s, rv)
	if err != nil {
		return zk, zv, false, err
	}
	return k, v, true, nil
}

// --------------------------------------------------------------------------
// Range operations
// --------------------------------------------------------------------------

// RawRange calls fn for every entry with start <= key < end in ascending
// order until fn returns false. A nil end means no upper bound. Backends
// without Range support are walked with GetGT, which sees concurrent writes.
func RawRange(s *Store, start, end []byte, fn func(k, v []byte) bool) error {
	if r, ok := db.AsRanged(s.db); ok {
		if err := r.Range(start, end, fn); err != nil {
			return backend("range", err)
		}
		return nil
	}

	o, err := s.Ordered()
	if err != nil {
		return err
	}

	// the walk starts strictly above start, so start itself is checked first
	if start == nil {
		start = []byte{}
	}
	v, loaded, err := s.db.Get(start)
	if err != nil {
		return backend("get", err)
	}
	if loaded && (end == nil || string(start) < string(end)) && !fn(start, v) {
		return nil
	}

	cur := start
	for {
		k, v, found, err := o.GetGT(cur)
		if err != nil {
			return backend("get gt", err)
		}
		if !found || (end != nil && string(k) >= string(end)) {
			return nil
		}
		if !fn(k, v) {
			return nil
		}
		cur = k
	}
}

// Range calls fn with every typed entry with start <= key < end. A nil end
// means no upper bound. Decoding stops at the first entry that fails.
func Range[K, V any](s *Store, start, end any, fn func(K, V) bool) error {
	var (
		rs, re []byte
		err    error
	)
	if start != nil {
		if rs, err = s.EncodeKey(start); err != nil {
			return err
		}
	}
	if end != nil {
		if re, err = s.EncodeKey(end); err != nil {
			return err
		}
	}

	var decodeErr error
	err = RawRange(s, rs, re, func(rk, rv []byte) bool {
		k, err := DecodeKey[K](rk)
		if err != nil {
			decodeErr = err
			return false
		}
		v, err := DecodeValue[V](s, rv)
		if err != nil {
			decodeErr = err
			return false
		}
		return fn(k, v)
	})
	if err != nil {
		return err
	}
	return decodeErr
}
