package wrapper

import (
	"fmt"

	"github.com/ValentinKolb/dStruct/lib/logging"
	"github.com/ValentinKolb/dStruct/lib/store"
)

var log = logging.GetLogger(logging.Wrapper)

// noCopy marks a handle as not to be copied after first use. go vet's
// copylocks check reports copies of any struct embedding it.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// ErrIndexExhausted is returned when a deque cursor would leave the index
// space. Neither the cursors nor the store are modified.
var ErrIndexExhausted = store.NewError(store.RetCInvalidOperation, "index exhausted")

// --------------------------------------------------------------------------
// Extend
// --------------------------------------------------------------------------

// ExtendError is returned by the Extend methods when an element could not
// be stored. Elements before Failed were stored and stay stored.
type ExtendError[T any] struct {
	Failed T     // The element that could not be stored
	Rest   []T   // The elements after Failed, never attempted
	Err    error // The cause
}

func (e *ExtendError[T]) Error() string {
	return fmt.Sprintf("extend stopped with %d elements left: %v", len(e.Rest), e.Err)
}

func (e *ExtendError[T]) Unwrap() error {
	return e.Err
}

// extend calls put for every item and stops at the first failure
func extend[T any](items []T, put func(T) error) error {
	for i, item := range items {
		if err := put(item); err != nil {
			return &ExtendError[T]{
				Failed: item,
				Rest:   items[i+1:],
				Err:    err,
			}
		}
	}
	return nil
}
