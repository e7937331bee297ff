package wrapper

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/ValentinKolb/dStruct/lib/keys"
	"github.com/ValentinKolb/dStruct/lib/store"
)

// Initial cursor positions of an empty deque, in the middle of the index space
const (
	InitialHead uint64 = math.MaxUint64/2 - 1
	InitialTail uint64 = math.MaxUint64 / 2
)

// Deque is a double ended list stored under one prefix. The elements occupy
// the indices strictly between the head and tail cursors, so the empty deque
// has tail == head+1. Both cursors are process wide counters shared by every
// handle of the same field.
//
// Index 0 and index math.MaxUint64 are never used: PushFront at head 0 and
// PushBack at tail math.MaxUint64 return ErrIndexExhausted.
//
// Like List, a Deque claims a slot before writing to it, and is not safe for
// concurrent compound use. In particular PopFront and PopBack racing for the
// last element need external locking.
type Deque[T any] struct {
	_      noCopy
	s      *store.Store
	prefix keys.Prefix
	head   *atomic.Uint64
	tail   *atomic.Uint64
}

// NewDeque creates a deque handle. head and tail must be shared by all
// handles of the same prefix, see RecoverDequeCursors. It panics if both
// cursors are equal.
func NewDeque[T any](s *store.Store, prefix keys.Prefix, head, tail *atomic.Uint64) *Deque[T] {
	if head.Load() == tail.Load() {
		panic(fmt.Sprintf("wrapper: degenerate deque window for %s (head == tail == %d)", prefix, head.Load()))
	}
	return &Deque[T]{
		s:      s,
		prefix: prefix,
		head:   head,
		tail:   tail,
	}
}

// RecoverDequeCursors derives the cursors from the lowest and highest index
// stored under prefix. An empty deque gets InitialHead and InitialTail.
// The backend must be ordered.
func RecoverDequeCursors(s *store.Store, prefix keys.Prefix) (head, tail uint64, err error) {
	head, tail = InitialHead, InitialTail

	k, _, found, err := store.RawGetGT(s, keys.Min(prefix))
	if err != nil {
		return 0, 0, err
	}
	first, ok := keys.ParseIndex(prefix, k)
	if !found || !ok {
		return head, tail, nil
	}

	k, _, found, err = store.RawGetLT(s, keys.Max(prefix))
	if err != nil {
		return 0, 0, err
	}
	last, ok := keys.ParseIndex(prefix, k)
	if !found || !ok {
		return head, tail, nil
	}

	return first - 1, last + 1, nil
}

// Len returns the number of slots between the cursors
func (d *Deque[T]) Len() uint64 {
	h, t := d.head.Load(), d.tail.Load()
	if t <= h+1 {
		return 0
	}
	return t - h - 1
}

// IsEmpty reports whether the deque has no elements
func (d *Deque[T]) IsEmpty() bool {
	return d.Len() == 0
}

// Get returns the element at position index counted from the front
func (d *Deque[T]) Get(index uint64) (T, bool, error) {
	var zero T
	if index >= d.Len() {
		return zero, false, nil
	}
	raw, ok, err := store.RawGet(d.s, keys.Index(d.prefix, d.head.Load()+1+index))
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := store.DecodeValue[T](d.s, raw)
	return v, err == nil, err
}

// PushBack appends v at the back
func (d *Deque[T]) PushBack(v T) error {
	enc, err := d.s.EncodeValue(v)
	if err != nil {
		return err
	}
	var idx uint64
	for {
		t := d.tail.Load()
		if t == math.MaxUint64 {
			return ErrIndexExhausted
		}
		if d.tail.CompareAndSwap(t, t+1) {
			idx = t
			break
		}
	}
	return d.write(idx, enc)
}

// PushFront prepends v at the front
func (d *Deque[T]) PushFront(v T) error {
	enc, err := d.s.EncodeValue(v)
	if err != nil {
		return err
	}
	var idx uint64
	for {
		h := d.head.Load()
		if h == 0 {
			return ErrIndexExhausted
		}
		if d.head.CompareAndSwap(h, h-1) {
			idx = h
			break
		}
	}
	return d.write(idx, enc)
}

func (d *Deque[T]) write(idx uint64, enc []byte) error {
	if _, _, err := store.RawInsert(d.s, keys.Index(d.prefix, idx), enc); err != nil {
		return err
	}
	log.Debugf("%s: push index %d", d.prefix, idx)
	return nil
}

// PopBack removes and returns the last element. On an empty deque it
// returns false without touching the store.
func (d *Deque[T]) PopBack() (T, bool, error) {
	for {
		h, t := d.head.Load(), d.tail.Load()
		if t <= h+1 {
			var zero T
			return zero, false, nil
		}
		if d.tail.CompareAndSwap(t, t-1) {
			return d.take(t - 1)
		}
	}
}

// PopFront removes and returns the first element. On an empty deque it
// returns false without touching the store.
func (d *Deque[T]) PopFront() (T, bool, error) {
	for {
		h, t := d.head.Load(), d.tail.Load()
		if t <= h+1 {
			var zero T
			return zero, false, nil
		}
		if d.head.CompareAndSwap(h, h+1) {
			return d.take(h + 1)
		}
	}
}

func (d *Deque[T]) take(idx uint64) (T, bool, error) {
	var zero T
	log.Debugf("%s: pop index %d", d.prefix, idx)
	raw, ok, err := store.RawRemove(d.s, keys.Index(d.prefix, idx))
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := store.DecodeValue[T](d.s, raw)
	return v, err == nil, err
}

// Clear pops from the back until the deque is empty
func (d *Deque[T]) Clear() error {
	for d.Len() > 0 {
		if _, _, err := d.PopBack(); err != nil {
			return err
		}
	}
	return nil
}

// Extend pushes every item to the back. It stops at the first failure and
// returns an *ExtendError[T]; items pushed before stay in the deque.
func (d *Deque[T]) Extend(items []T) error {
	return extend(items, d.PushBack)
}

// Iter returns an iterator from front to back
func (d *Deque[T]) Iter() *ListIter[T] {
	return &ListIter[T]{get: d.Get, length: d.Len}
}
