package wrapper

import (
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/db/engines/oak"
	"github.com/ValentinKolb/dStruct/lib/keys"
	"github.com/ValentinKolb/dStruct/lib/store"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) db.ByteStore {
	bs := oak.NewOakDB(nil)
	t.Cleanup(func() { bs.Close() })
	return bs
}

func newTestStore(t *testing.T) *store.Store {
	return store.NewStore(newBackend(t))
}

// openList recovers the length like the schema does on open
func openList[T any](t *testing.T, s *store.Store, p keys.Prefix) *List[T] {
	n, err := RecoverListLength(s, p)
	require.NoError(t, err)
	length := new(atomic.Uint64)
	length.Store(n)
	return NewList[T](s, p, length)
}

func openDeque[T any](t *testing.T, s *store.Store, p keys.Prefix) *Deque[T] {
	h, tl, err := RecoverDequeCursors(s, p)
	require.NoError(t, err)
	head, tail := new(atomic.Uint64), new(atomic.Uint64)
	head.Store(h)
	tail.Store(tl)
	return NewDeque[T](s, p, head, tail)
}

// orderedOnly hides every capability except Ordered
type orderedOnly struct {
	db.ByteStore
}

func (o orderedOnly) SupportsFeature(f db.Feature) bool {
	return f&^(db.FeatureGet|db.FeatureInsert|db.FeatureRemove|db.FeatureOrdered) == 0
}

func (o orderedOnly) GetLT(key []byte) ([]byte, []byte, bool, error) {
	return o.ByteStore.(db.Ordered).GetLT(key)
}

func (o orderedOnly) GetGT(key []byte) ([]byte, []byte, bool, error) {
	return o.ByteStore.(db.Ordered).GetGT(key)
}

func orderedOnlyBackend(t *testing.T) db.ByteStore {
	return orderedOnly{newBackend(t)}
}
