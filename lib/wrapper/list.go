package wrapper

import (
	"sync/atomic"

	"github.com/ValentinKolb/dStruct/lib/keys"
	"github.com/ValentinKolb/dStruct/lib/store"
)

// List is an index addressed list stored under one prefix. Element i lives
// at keys.Index(prefix, i). The length is a process wide counter shared by
// every handle of the same field; it is recovered from the store when the
// schema is opened and never persisted.
//
// Push claims an index from the counter before writing the element. The two
// steps are not atomic together: a crash in between leaves a gap that Get
// and Pop report as a missing element.
//
// A List is not safe for concurrent compound use. Single Push and Pop calls
// never collide on an index, sequences of them need external locking.
type List[T any] struct {
	_      noCopy
	s      *store.Store
	prefix keys.Prefix
	length *atomic.Uint64
}

// NewList creates a list handle. length must be shared by all handles of
// the same prefix, see RecoverListLength.
func NewList[T any](s *store.Store, prefix keys.Prefix, length *atomic.Uint64) *List[T] {
	return &List[T]{
		s:      s,
		prefix: prefix,
		length: length,
	}
}

// RecoverListLength returns one past the highest index stored under prefix,
// or 0 if the list is empty. The backend must be ordered.
func RecoverListLength(s *store.Store, prefix keys.Prefix) (uint64, error) {
	k, _, found, err := store.RawGetLT(s, keys.Max(prefix))
	if err != nil || !found {
		return 0, err
	}
	idx, ok := keys.ParseIndex(prefix, k)
	if !ok {
		return 0, nil
	}
	return idx + 1, nil
}

// Get returns the element at index
func (l *List[T]) Get(index uint64) (T, bool, error) {
	var zero T
	raw, ok, err := store.RawGet(l.s, keys.Index(l.prefix, index))
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := store.DecodeValue[T](l.s, raw)
	return v, err == nil, err
}

// Push appends v. The value is encoded before an index is claimed, so an
// encoding failure leaves the list unchanged.
func (l *List[T]) Push(v T) error {
	enc, err := l.s.EncodeValue(v)
	if err != nil {
		return err
	}
	idx := l.length.Add(1) - 1
	if _, _, err := store.RawInsert(l.s, keys.Index(l.prefix, idx), enc); err != nil {
		return err
	}
	log.Debugf("%s: push index %d", l.prefix, idx)
	return nil
}

// Pop removes and returns the last element. On an empty list it returns
// false without touching the store.
func (l *List[T]) Pop() (T, bool, error) {
	var zero T
	var idx uint64
	for {
		n := l.length.Load()
		if n == 0 {
			return zero, false, nil
		}
		if l.length.CompareAndSwap(n, n-1) {
			idx = n - 1
			break
		}
	}
	log.Debugf("%s: pop index %d", l.prefix, idx)

	raw, ok, err := store.RawRemove(l.s, keys.Index(l.prefix, idx))
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := store.DecodeValue[T](l.s, raw)
	return v, err == nil, err
}

// Len returns the number of claimed indices
func (l *List[T]) Len() uint64 {
	return l.length.Load()
}

// IsEmpty reports whether the list has no elements
func (l *List[T]) IsEmpty() bool {
	return l.Len() == 0
}

// Clear pops until the list is empty
func (l *List[T]) Clear() error {
	for l.Len() > 0 {
		if _, _, err := l.Pop(); err != nil {
			return err
		}
	}
	return nil
}

// Extend pushes every item in order. It stops at the first failure and
// returns an *ExtendError[T]; items pushed before stay in the list.
func (l *List[T]) Extend(items []T) error {
	return extend(items, l.Push)
}

// Iter returns an iterator starting at index 0
func (l *List[T]) Iter() *ListIter[T] {
	return &ListIter[T]{get: l.Get, length: l.Len}
}

// ListIter walks a List or Deque front to back. It reads the length on every
// step and therefore sees pushes and pops made after it was created. It stops
// at the end or at the first missing element.
//
//	it := list.Iter()
//	for it.Next() {
//		use(it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type ListIter[T any] struct {
	get    func(uint64) (T, bool, error)
	length func() uint64
	next   uint64
	cur    T
	err    error
}

// Next advances to the next element and reports whether there is one
func (it *ListIter[T]) Next() bool {
	if it.err != nil || it.next >= it.length() {
		return false
	}
	v, ok, err := it.get(it.next)
	if err != nil {
		it.err = err
		return false
	}
	if !ok {
		return false
	}
	it.cur = v
	it.next++
	return true
}

// Value returns the current element
func (it *ListIter[T]) Value() T {
	return it.cur
}

// Index returns the position of the current element
func (it *ListIter[T]) Index() uint64 {
	return it.next - 1
}

// Err returns the error that stopped the iteration, if any
func (it *ListIter[T]) Err() error {
	return it.err
}

// Collect drains the iterator into a slice
func (it *ListIter[T]) Collect() ([]T, error) {
	var out []T
	for it.Next() {
		out = append(out, it.Value())
	}
	return out, it.Err()
}
