package wrapper

import (
	"github.com/ValentinKolb/dStruct/lib/keys"
	"github.com/ValentinKolb/dStruct/lib/store"
)

// clearBatch is the number of keys collected per scan in Map.Clear
const clearBatch = 256

// Pair is one key-value pair of a Map
type Pair[K, V any] struct {
	Key   K
	Value V
}

// Map is a key-value collection stored under one prefix. Every entry lives
// at prefix ++ key encoding of K, so the entries of a map are contiguous in
// key order and never mix with the entries of another prefix.
//
// Point operations work on every backend. Iteration, IsEmpty and Clear need
// an ordered backend and use the Ranged capability when it is available.
type Map[K, V any] struct {
	_      noCopy
	s      *store.Store
	prefix keys.Prefix
}

// NewMap creates a map handle
func NewMap[K, V any](s *store.Store, prefix keys.Prefix) *Map[K, V] {
	return &Map[K, V]{
		s:      s,
		prefix: prefix,
	}
}

func (m *Map[K, V]) key(k K) keys.Prefixed[K] {
	return keys.New(m.prefix, k)
}

// Insert stores v under k and returns the previous value
func (m *Map[K, V]) Insert(k K, v V) (V, bool, error) {
	return store.Insert(m.s, m.key(k), v)
}

// Get returns the value stored under k
func (m *Map[K, V]) Get(k K) (V, bool, error) {
	return store.Get[V](m.s, m.key(k))
}

// Remove deletes k and returns the removed value
func (m *Map[K, V]) Remove(k K) (V, bool, error) {
	return store.Remove[V](m.s, m.key(k))
}

// ContainsKey reports whether a value is stored under k
func (m *Map[K, V]) ContainsKey(k K) (bool, error) {
	return store.Contains(m.s, m.key(k))
}

// Extend inserts every pair in order. It stops at the first failure and
// returns an *ExtendError[Pair[K, V]]; pairs inserted before stay in the map.
func (m *Map[K, V]) Extend(pairs []Pair[K, V]) error {
	return extend(pairs, func(p Pair[K, V]) error {
		_, _, err := m.Insert(p.Key, p.Value)
		return err
	})
}

// ForEach calls fn for every entry in key order until fn returns false.
// fn must not modify the map.
func (m *Map[K, V]) ForEach(fn func(K, V) bool) error {
	var decodeErr error
	err := store.RawRange(m.s, m.prefix.Scalar(), m.prefix.End(), func(rk, rv []byte) bool {
		k, v, err := m.decode(rk, rv)
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

// Keys returns all keys in key order
func (m *Map[K, V]) Keys() ([]K, error) {
	var out []K
	err := m.ForEach(func(k K, _ V) bool {
		out = append(out, k)
		return true
	})
	return out, err
}

// Values returns all values in key order
func (m *Map[K, V]) Values() ([]V, error) {
	var out []V
	err := m.ForEach(func(_ K, v V) bool {
		out = append(out, v)
		return true
	})
	return out, err
}

// IsEmpty reports whether the map has no entries
func (m *Map[K, V]) IsEmpty() (bool, error) {
	empty := true
	err := store.RawRange(m.s, m.prefix.Scalar(), m.prefix.End(), func(_, _ []byte) bool {
		empty = false
		return false
	})
	return empty, err
}

// Clear removes every entry of the map. Entries of other prefixes are not
// touched. Clear is not atomic, concurrent inserts may survive it.
func (m *Map[K, V]) Clear() error {
	for {
		batch := make([][]byte, 0, clearBatch)
		err := store.RawRange(m.s, m.prefix.Scalar(), m.prefix.End(), func(rk, _ []byte) bool {
			batch = append(batch, rk)
			return len(batch) < clearBatch
		})
		if err != nil {
			return err
		}
		for _, k := range batch {
			if _, _, err := store.RawRemove(m.s, k); err != nil {
				return err
			}
		}
		if len(batch) < clearBatch {
			return nil
		}
	}
}

func (m *Map[K, V]) decode(rk, rv []byte) (K, V, error) {
	var v V
	pk, err := store.DecodeKey[keys.Prefixed[K]](rk)
	if err != nil {
		return pk.Key, v, err
	}
	v, err = store.DecodeValue[V](m.s, rv)
	return pk.Key, v, err
}

// Iter returns an iterator over the entries in key order. It walks the map
// with GetGT one entry at a time and sees concurrent changes.
func (m *Map[K, V]) Iter() *MapIter[K, V] {
	return &MapIter[K, V]{m: m, cursor: m.prefix.Scalar()}
}

// MapIter walks a Map in key order
//
//	it := m.Iter()
//	for it.Next() {
//		use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type MapIter[K, V any] struct {
	m      *Map[K, V]
	cursor []byte
	key    K
	value  V
	done   bool
	err    error
}

// Next advances to the next entry and reports whether there is one
func (it *MapIter[K, V]) Next() bool {
	if it.done {
		return false
	}
	rk, rv, found, err := store.RawGetGT(it.m.s, it.cursor)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	if !found || !it.m.prefix.Owns(rk) {
		it.done = true
		return false
	}
	k, v, err := it.m.decode(rk, rv)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	it.cursor, it.key, it.value = rk, k, v
	return true
}

// Key returns the key of the current entry
func (it *MapIter[K, V]) Key() K {
	return it.key
}

// Value returns the value of the current entry
func (it *MapIter[K, V]) Value() V {
	return it.value
}

// Err returns the error that stopped the iteration, if any
func (it *MapIter[K, V]) Err() error {
	return it.err
}
