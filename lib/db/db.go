package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
	ImplOak   Implementation = "oak"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureGet     Feature = 1 << iota // Support for Get operations
	FeatureInsert                      // Support for Insert operations
	FeatureRemove                      // Support for Remove operations
	FeatureAtomic                      // Support for AtomicUpdate and ConditionalUpdate
	FeatureOrdered                     // Support for GetLT and GetGT
	FeatureRanged                      // Support for Range scans
	FeatureSave                        // Support for Save operations
	FeatureLoad                        // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureGet:
		return "Get"
	case FeatureInsert:
		return "Insert"
	case FeatureRemove:
		return "Remove"
	case FeatureAtomic:
		return "Atomic"
	case FeatureOrdered:
		return "Ordered"
	case FeatureRanged:
		return "Ranged"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	Entries           int            `json:"entries"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interfaces
// --------------------------------------------------------------------------

// ByteStore is the minimal contract every engine satisfies: a map from byte
// keys to byte values. Implementations must copy values on the way in and on
// the way out so callers may reuse or modify their slices.
// Optional capabilities are exposed through the Atomic, Ordered, Ranged and
// Persistent interfaces and advertised with SupportsFeature.
type ByteStore interface {

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Get(key []byte) (value []byte, loaded bool, err error)

	// Insert stores value under key and returns the previous value, if any.
	Insert(key, value []byte) (old []byte, loaded bool, err error)

	// Remove deletes the key and returns the removed value, if any.
	// Removing a missing key is not an error.
	Remove(key []byte) (old []byte, loaded bool, err error)

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close releases the resources of the database. Every operation after
	// Close returns an error.
	Close() (err error)
}

// Atomic is implemented by engines that can run a read-modify-write on a
// single key without interference from concurrent writers of that key.
type Atomic interface {

	// AtomicUpdate calls fn with the current value of key and stores the
	// returned value. Returning keep=false removes the key. fn may be called
	// more than once and must not have side effects beyond its return value.
	AtomicUpdate(key []byte, fn func(old []byte, loaded bool) (value []byte, keep bool)) (err error)

	// ConditionalUpdate replaces the value of key with value only if the
	// current value equals expected. A nil expected requires the key to be
	// absent, a nil value removes the key. A mismatch is reported as
	// swapped=false and is not an error.
	ConditionalUpdate(key, expected, value []byte) (swapped bool, err error)
}

// Ordered is implemented by engines that keep keys in lexicographic byte order.
type Ordered interface {

	// GetLT returns the entry with the greatest key strictly less than key.
	GetLT(key []byte) (k, v []byte, found bool, err error)

	// GetGT returns the entry with the smallest key strictly greater than key.
	GetGT(key []byte) (k, v []byte, found bool, err error)
}

// Ranged is implemented by engines that can scan a key range in order.
type Ranged interface {

	// Range calls fn for every entry with start <= key < end in ascending
	// order until fn returns false. A nil end means no upper bound.
	// fn must not modify the database.
	Range(start, end []byte, fn func(k, v []byte) bool) (err error)
}

// Persistent is implemented by engines that can write and read snapshots.
type Persistent interface {

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load replaces the database state with the snapshot read from r.
	Load(r io.Reader) (err error)
}

// --------------------------------------------------------------------------
// Capability discovery
// --------------------------------------------------------------------------

// AsAtomic returns the Atomic view of bs if the engine implements and
// advertises it.
func AsAtomic(bs ByteStore) (Atomic, bool) {
	a, ok := bs.(Atomic)
	return a, ok && bs.SupportsFeature(FeatureAtomic)
}

// AsOrdered returns the Ordered view of bs if the engine implements and
// advertises it.
func AsOrdered(bs ByteStore) (Ordered, bool) {
	o, ok := bs.(Ordered)
	return o, ok && bs.SupportsFeature(FeatureOrdered)
}

// AsRanged returns the Ranged view of bs if the engine implements and
// advertises it.
func AsRanged(bs ByteStore) (Ranged, bool) {
	r, ok := bs.(Ranged)
	return r, ok && bs.SupportsFeature(FeatureRanged)
}

// AsPersistent returns the Persistent view of bs if the engine implements and
// advertises both Save and Load.
func AsPersistent(bs ByteStore) (Persistent, bool) {
	p, ok := bs.(Persistent)
	return p, ok && bs.SupportsFeature(FeatureSave|FeatureLoad)
}
