package testing

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ValentinKolb/dStruct/lib/db"
)

// ErrInjected is the error returned by a FaultyStore for an injected failure
var ErrInjected = errors.New("injected failure")

// Op names a ByteStore operation for fault injection
type Op string

const (
	OpGet               Op = "get"
	OpInsert            Op = "insert"
	OpRemove            Op = "remove"
	OpAtomicUpdate      Op = "atomic-update"
	OpConditionalUpdate Op = "conditional-update"
	OpGetLT             Op = "get-lt"
	OpGetGT             Op = "get-gt"
	OpRange             Op = "range"
	OpSave              Op = "save"
	OpLoad              Op = "load"
)

// FaultyStore wraps a ByteStore and fails operations on demand. It forwards
// every capability of the wrapped store and advertises the same features.
//
// Thread-safety: FaultyStore is safe for concurrent use.
type FaultyStore struct {
	inner db.ByteStore

	mu        sync.Mutex
	armed     bool
	remaining int
	ops       map[Op]bool
	calls     map[Op]int
}

// NewFaultyStore wraps inner. Nothing fails until FailAfter is called.
func NewFaultyStore(inner db.ByteStore) *FaultyStore {
	return &FaultyStore{
		inner: inner,
		calls: make(map[Op]int),
	}
}

// FailAfter lets the next n matching operations succeed and fails every
// matching operation after that. Without ops every operation matches.
func (f *FaultyStore) FailAfter(n int, ops ...Op) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.armed = true
	f.remaining = n
	f.ops = make(map[Op]bool, len(ops))
	for _, op := range ops {
		f.ops[op] = true
	}
}

// Fail fails every matching operation from now on
func (f *FaultyStore) Fail(ops ...Op) {
	f.FailAfter(0, ops...)
}

// Heal stops injecting failures
func (f *FaultyStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = false
}

// Calls returns how often op was called, including failed calls
func (f *FaultyStore) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Inner returns the wrapped store
func (f *FaultyStore) Inner() db.ByteStore {
	return f.inner
}

func (f *FaultyStore) check(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[op]++
	if !f.armed || (len(f.ops) > 0 && !f.ops[op]) {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInjected, op)
}

func missing(feature db.Feature) error {
	return fmt.Errorf("wrapped store does not support %s", feature)
}

// --------------------------------------------------------------------------
// ByteStore
// --------------------------------------------------------------------------

func (f *FaultyStore) Get(key []byte) ([]byte, bool, error) {
	if err := f.check(OpGet); err != nil {
		return nil, false, err
	}
	return f.inner.Get(key)
}

func (f *FaultyStore) Insert(key, value []byte) ([]byte, bool, error) {
	if err := f.check(OpInsert); err != nil {
		return nil, false, err
	}
	return f.inner.Insert(key, value)
}

func (f *FaultyStore) Remove(key []byte) ([]byte, bool, error) {
	if err := f.check(OpRemove); err != nil {
		return nil, false, err
	}
	return f.inner.Remove(key)
}

func (f *FaultyStore) SupportsFeature(feature db.Feature) bool {
	return f.inner.SupportsFeature(feature)
}

func (f *FaultyStore) GetInfo() db.DatabaseInfo {
	return f.inner.GetInfo()
}

func (f *FaultyStore) Close() error {
	return f.inner.Close()
}

// --------------------------------------------------------------------------
// Capabilities
// --------------------------------------------------------------------------

func (f *FaultyStore) AtomicUpdate(key []byte, fn func(old []byte, loaded bool) ([]byte, bool)) error {
	if err := f.check(OpAtomicUpdate); err != nil {
		return err
	}
	a, ok := db.AsAtomic(f.inner)
	if !ok {
		return missing(db.FeatureAtomic)
	}
	return a.AtomicUpdate(key, fn)
}

func (f *FaultyStore) ConditionalUpdate(key, expected, value []byte) (bool, error) {
	if err := f.check(OpConditionalUpdate); err != nil {
		return false, err
	}
	a, ok := db.AsAtomic(f.inner)
	if !ok {
		return false, missing(db.FeatureAtomic)
	}
	return a.ConditionalUpdate(key, expected, value)
}

func (f *FaultyStore) GetLT(key []byte) ([]byte, []byte, bool, error) {
	if err := f.check(OpGetLT); err != nil {
		return nil, nil, false, err
	}
	o, ok := db.AsOrdered(f.inner)
	if !ok {
		return nil, nil, false, missing(db.FeatureOrdered)
	}
	return o.GetLT(key)
}

func (f *FaultyStore) GetGT(key []byte) ([]byte, []byte, bool, error) {
	if err := f.check(OpGetGT); err != nil {
		return nil, nil, false, err
	}
	o, ok := db.AsOrdered(f.inner)
	if !ok {
		return nil, nil, false, missing(db.FeatureOrdered)
	}
	return o.GetGT(key)
}

func (f *FaultyStore) Range(start, end []byte, fn func(k, v []byte) bool) error {
	if err := f.check(OpRange); err != nil {
		return err
	}
	r, ok := db.AsRanged(f.inner)
	if !ok {
		return missing(db.FeatureRanged)
	}
	return r.Range(start, end, fn)
}

func (f *FaultyStore) Save(w io.Writer) error {
	if err := f.check(OpSave); err != nil {
		return err
	}
	p, ok := db.AsPersistent(f.inner)
	if !ok {
		return missing(db.FeatureSave)
	}
	return p.Save(w)
}

func (f *FaultyStore) Load(r io.Reader) error {
	if err := f.check(OpLoad); err != nil {
		return err
	}
	p, ok := db.AsPersistent(f.inner)
	if !ok {
		return missing(db.FeatureLoad)
	}
	return p.Load(r)
}
