// Package keys lays out the shared keyspace: every collection owns one
// prefix byte, list and deque elements live under prefix ++ big endian index
// and scalars under the bare prefix byte.
package keys

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ValentinKolb/dStruct/lib/codec"
)

// Prefix is the one byte tag that separates the keyspaces of the logical
// collections sharing a store.
type Prefix uint8

const (
	// MaxPrefix is the highest prefix available to schema fields.
	MaxPrefix Prefix = 253

	// MaxFields is the number of prefixes available to schema fields.
	MaxFields = int(MaxPrefix) + 1

	// LockPrefix is reserved for the lock records of the lock manager.
	LockPrefix Prefix = 254
)

// Scalar returns the key of the single value stored under p.
func (p Prefix) Scalar() []byte {
	return []byte{byte(p)}
}

// Owns reports whether key belongs to the keyspace of p.
func (p Prefix) Owns(key []byte) bool {
	return len(key) > 0 && key[0] == byte(p)
}

// End returns the smallest key greater than every key owned by p, or nil
// if p is the last prefix.
func (p Prefix) End() []byte {
	if p == math.MaxUint8 {
		return nil
	}
	return []byte{byte(p) + 1}
}

// MarshalKey encodes p as the scalar key of its collection, so a bare
// Prefix can be passed wherever an encodable key is expected.
func (p Prefix) MarshalKey() ([]byte, error) {
	return p.Scalar(), nil
}

func (p Prefix) String() string {
	return fmt.Sprintf("prefix(%d)", uint8(p))
}

// --------------------------------------------------------------------------
// Prefixed keys
// --------------------------------------------------------------------------

// Prefixed is a subkey tagged with the prefix of its collection. It encodes
// as the prefix byte followed by the key encoding of Key.
type Prefixed[K any] struct {
	Prefix Prefix
	Key    K
}

// New creates a prefixed key
func New[K any](p Prefix, key K) Prefixed[K] {
	return Prefixed[K]{Prefix: p, Key: key}
}

func (k Prefixed[K]) MarshalKey() ([]byte, error) {
	return codec.AppendKey([]byte{byte(k.Prefix)}, k.Key)
}

func (k *Prefixed[K]) UnmarshalKey(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, codec.ErrShortKey
	}
	n, err := codec.DecodeKeyPrefix(b[1:], &k.Key)
	if err != nil {
		return 0, err
	}
	k.Prefix = Prefix(b[0])
	return n + 1, nil
}

// --------------------------------------------------------------------------
// Index keys (List and Deque)
// --------------------------------------------------------------------------

// IndexLen is the length of an encoded index key.
const IndexLen = 9

// Index returns the key of element i in the collection p.
func Index(p Prefix, i uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte{byte(p)}, i)
}

// Min is the smallest index key of p.
func Min(p Prefix) []byte {
	return Index(p, 0)
}

// Max is the greatest index key of p.
func Max(p Prefix) []byte {
	return Index(p, math.MaxUint64)
}

// ParseIndex extracts the element index from an index key. It fails if the
// key belongs to another prefix or is not an index key.
func ParseIndex(p Prefix, key []byte) (uint64, bool) {
	if len(key) != IndexLen || !p.Owns(key) {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[1:]), true
}
