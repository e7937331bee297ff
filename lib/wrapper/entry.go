package wrapper

import (
	"github.com/ValentinKolb/dStruct/lib/store"
)

// Entry is a view of a single map key, occupied or vacant, taken when
// Map.Entry was called.
//
// On backends with the Atomic capability the OrInsert family inserts with a
// compare-and-swap against "absent", so an entry inserted concurrently wins
// and its value is returned. Without Atomic they fall back to a plain Insert.
type Entry[K, V any] struct {
	m        *Map[K, V]
	key      K
	value    V
	occupied bool
}

// Entry returns the entry of k
func (m *Map[K, V]) Entry(k K) (*Entry[K, V], error) {
	v, ok, err := m.Get(k)
	if err != nil {
		return nil, err
	}
	return &Entry[K, V]{m: m, key: k, value: v, occupied: ok}, nil
}

// Occupied reports whether a value was present
func (e *Entry[K, V]) Occupied() bool {
	return e.occupied
}

// Key returns the key of the entry
func (e *Entry[K, V]) Key() K {
	return e.key
}

// Get returns the value of an occupied entry
func (e *Entry[K, V]) Get() (V, bool) {
	return e.value, e.occupied
}

// OrInsert returns the present value or inserts v
func (e *Entry[K, V]) OrInsert(v V) (V, error) {
	if e.occupied {
		return e.value, nil
	}
	return e.insertVacant(v)
}

// OrInsertWith returns the present value or inserts the result of f
func (e *Entry[K, V]) OrInsertWith(f func() V) (V, error) {
	if e.occupied {
		return e.value, nil
	}
	return e.insertVacant(f())
}

// OrInsertWithKey returns the present value or inserts the result of f(key)
func (e *Entry[K, V]) OrInsertWithKey(f func(K) V) (V, error) {
	if e.occupied {
		return e.value, nil
	}
	return e.insertVacant(f(e.key))
}

// OrDefault returns the present value or inserts the default of V
// (see DefaultOf)
func (e *Entry[K, V]) OrDefault() (V, error) {
	if e.occupied {
		return e.value, nil
	}
	return e.insertVacant(DefaultOf[V]())
}

// AndModify applies f to the value of an occupied entry and stores the
// result. Vacant entries are returned unchanged.
func (e *Entry[K, V]) AndModify(f func(V) V) (*Entry[K, V], error) {
	if !e.occupied {
		return e, nil
	}
	next := f(e.value)
	if _, _, err := e.m.Insert(e.key, next); err != nil {
		return e, err
	}
	e.value = next
	return e, nil
}

// Insert stores v regardless of the state of the entry and returns the
// previous value. The entry is occupied afterwards.
func (e *Entry[K, V]) Insert(v V) (V, bool, error) {
	old, loaded, err := e.m.Insert(e.key, v)
	if err != nil {
		return old, false, err
	}
	e.value, e.occupied = v, true
	return old, loaded, nil
}

// Remove deletes the entry and returns the removed value. The entry is
// vacant afterwards.
func (e *Entry[K, V]) Remove() (V, bool, error) {
	old, loaded, err := e.m.Remove(e.key)
	if err != nil {
		return old, false, err
	}
	var zero V
	e.value, e.occupied = zero, false
	return old, loaded, nil
}

func (e *Entry[K, V]) insertVacant(v V) (V, error) {
	if _, err := e.m.s.Atomic(); err != nil {
		if _, _, err := e.m.Insert(e.key, v); err != nil {
			return v, err
		}
		e.value, e.occupied = v, true
		return v, nil
	}

	swapped, err := store.ConditionalUpdate(e.m.s, e.m.key(e.key), store.None[V](), store.Some(v))
	if err != nil {
		return v, err
	}
	if swapped {
		e.value, e.occupied = v, true
		return v, nil
	}

	// lost against a concurrent insert
	cur, ok, err := e.m.Get(e.key)
	if err != nil {
		return v, err
	}
	if !ok {
		return e.insertVacant(v)
	}
	e.value, e.occupied = cur, true
	return cur, nil
}
