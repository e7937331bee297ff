package oak

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/db/util"
	"github.com/ValentinKolb/dStruct/lib/logging"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum      = "OAKDB\x00\x00\x00" // File format identifier
	oakVersion    = 1                   // Snapshot format version
	defaultDegree = 32                  // B-tree degree
	rangeBatch    = 256                 // Entries copied per lock acquisition during Range
	infoSamples   = 1000                // Entries sampled by GetInfo
)

// ErrClosed is returned by every operation on a closed database
var ErrClosed = errors.New("oak: database is closed")

// --------------------------------------------------------------------------
// Core Oak database structure
// --------------------------------------------------------------------------

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// oakImpl is an ordered in-memory database on a B-tree guarded by a single
// RWMutex. Readers share the lock, writers and atomic updates hold it alone.
type oakImpl struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[item]
	degree int
	closed bool
	log    logger.ILogger
}

// DBOptions configures the oakImpl behavior during initialization
type DBOptions struct {
	Degree int // B-tree degree (0 = use default: 32)
}

// DefaultOptions returns the default oakImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Degree: defaultDegree,
	}
}

// NewOakDB creates a new empty ordered database with the specified options (optional).
// The returned store supports every capability of the db package.
func NewOakDB(opts *DBOptions) db.ByteStore {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Degree < 2 {
		opts.Degree = defaultDegree
	}

	return &oakImpl{
		tree:   btree.NewG[item](opts.Degree, less),
		degree: opts.Degree,
		log:    logging.GetLogger(logging.Oak),
	}
}

// --------------------------------------------------------------------------
// ByteStore Interface Methods
// --------------------------------------------------------------------------

// Get retrieves a copy of the value stored under key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (o *oakImpl) Get(key []byte) ([]byte, bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return nil, false, ErrClosed
	}
	it, ok := o.tree.Get(item{key: key})
	if !ok {
		return nil, false, nil
	}
	return util.CloneBytes(it.value), true, nil
}

// Insert stores a copy of value under key and returns the previous value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (o *oakImpl) Insert(key, value []byte) ([]byte, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, false, ErrClosed
	}
	if value == nil {
		value = []byte{}
	}
	old, replaced := o.tree.ReplaceOrInsert(item{key: util.CloneBytes(key), value: util.CloneBytes(value)})
	return old.value, replaced, nil
}

// Remove deletes key and returns the removed value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (o *oakImpl) Remove(key []byte) ([]byte, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, false, ErrClosed
	}
	old, ok := o.tree.Delete(item{key: key})
	return old.value, ok, nil
}

// --------------------------------------------------------------------------
// Atomic Interface Methods
// --------------------------------------------------------------------------

// AtomicUpdate runs fn on the current value of key while holding the write lock.
// fn is called exactly once.
//
// Thread-safety: This method is thread-safe. fn must not call back into the database.
func (o *oakImpl) AtomicUpdate(key []byte, fn func(old []byte, loaded bool) ([]byte, bool)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}

	old, loaded := o.tree.Get(item{key: key})
	value, keep := fn(util.CloneBytes(old.value), loaded)

	switch {
	case keep:
		if value == nil {
			value = []byte{}
		}
		o.tree.ReplaceOrInsert(item{key: util.CloneBytes(key), value: util.CloneBytes(value)})
	case loaded:
		o.tree.Delete(item{key: key})
	}
	return nil
}

// ConditionalUpdate swaps the value of key if it currently equals expected.
// A nil expected requires the key to be absent, a nil value removes the key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (o *oakImpl) ConditionalUpdate(key, expected, value []byte) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false, ErrClosed
	}

	cur, loaded := o.tree.Get(item{key: key})
	if expected == nil && loaded {
		return false, nil
	}
	if expected != nil && (!loaded || !bytes.Equal(cur.value, expected)) {
		return false, nil
	}

	if value == nil {
		if loaded {
			o.tree.Delete(item{key: key})
		}
		return true, nil
	}
	o.tree.ReplaceOrInsert(item{key: util.CloneBytes(key), value: util.CloneBytes(value)})
	return true, nil
}

// --------------------------------------------------------------------------
// Ordered Interface Methods
// --------------------------------------------------------------------------

// GetLT returns the entry with the greatest key strictly less than key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (o *oakImpl) GetLT(key []byte) ([]byte, []byte, bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return nil, nil, false, ErrClosed
	}

	var (
		found item
		ok    bool
	)
	o.tree.DescendLessOrEqual(item{key: key}, func(it item) bool {
		if bytes.Equal(it.key, key) {
			return true
		}
		found, ok = it, true
		return false
	})
	if !ok {
		return nil, nil, false, nil
	}
	return util.CloneBytes(found.key), util.CloneBytes(found.value), true, nil
}

// GetGT returns the entry with the smallest key strictly greater than key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (o *oakImpl) GetGT(key []byte) ([]byte, []byte, bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return nil, nil, false, ErrClosed
	}

	var (
		found item
		ok    bool
	)
	o.tree.AscendGreaterOrEqual(item{key: key}, func(it item) bool {
		if bytes.Equal(it.key, key) {
			return true
		}
		found, ok = it, true
		return false
	})
	if !ok {
		return nil, nil, false, nil
	}
	return util.CloneBytes(found.key), util.CloneBytes(found.value), true, nil
}

// --------------------------------------------------------------------------
// Ranged Interface Methods
// --------------------------------------------------------------------------

// Range calls fn for every entry with start <= key < end in ascending order.
// Entries are copied in batches and fn runs without holding the lock, so fn
// may modify the database. Each batch is a consistent view, the scan as a
// whole is not.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (o *oakImpl) Range(start, end []byte, fn func(k, v []byte) bool) error {
	from, inclusive := start, true
	if from == nil {
		from = []byte{}
	}

	for {
		batch, err := o.collect(from, inclusive, end)
		if err != nil {
			return err
		}
		for _, it := range batch {
			if !fn(it.key, it.value) {
				return nil
			}
		}
		if len(batch) < rangeBatch {
			return nil
		}
		from, inclusive = batch[len(batch)-1].key, false
	}
}

// collect copies up to rangeBatch entries starting at from
func (o *oakImpl) collect(from []byte, inclusive bool, end []byte) ([]item, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return nil, ErrClosed
	}

	batch := make([]item, 0, rangeBatch)
	o.tree.AscendGreaterOrEqual(item{key: from}, func(it item) bool {
		if !inclusive && bytes.Equal(it.key, from) {
			return true
		}
		if end != nil && bytes.Compare(it.key, end) >= 0 {
			return false
		}
		batch = append(batch, item{key: util.CloneBytes(it.key), value: util.CloneBytes(it.value)})
		return len(batch) < rangeBatch
	})
	return batch, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a snapshot of the database to w.
//
// Format (little endian):
//  1. Magic number "OAKDB\x00\x00\x00"
//  2. Version (uint8)
//  3. Number of entries (uint64)
//  4. For each entry in key order: key length (uint32), key, value length (uint32), value
//
// Thread-safety: Save holds the read lock for the whole snapshot, writers
// wait until it is done.
func (o *oakImpl) Save(w io.Writer) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return ErrClosed
	}

	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(oakVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(o.tree.Len())); err != nil {
		return err
	}

	var err error
	o.tree.Ascend(func(it item) bool {
		if err = writeChunk(bw, it.key); err != nil {
			return false
		}
		err = writeChunk(bw, it.value)
		return err == nil
	})
	if err != nil {
		return err
	}

	o.log.Debugf("saved %d entries", o.tree.Len())
	return bw.Flush()
}

// Load replaces the content of the database with the snapshot read from r.
// On error the database keeps its previous content.
//
// Thread-safety: This method is thread-safe, the swap happens under the write lock.
func (o *oakImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != oakVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, oakVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	tree := btree.NewG[item](o.degree, less)
	for i := uint64(0); i < count; i++ {
		key, err := readChunk(br)
		if err != nil {
			return err
		}
		value, err := readChunk(br)
		if err != nil {
			return err
		}
		tree.ReplaceOrInsert(item{key: key, value: value})
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.tree = tree

	o.log.Infof("loaded %d entries", count)
	return nil
}

func writeChunk(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readChunk(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

// Metadata is the engine specific part of db.DatabaseInfo
type Metadata struct {
	Degree             int                    `json:"degree"`
	Closed             bool                   `json:"closed"`
	Prefixes           []util.PrefixStat      `json:"prefixes"`
	PrefixDistribution util.DistributionStats `json:"prefix_distribution"`
	ValueP50           int                    `json:"value_p50"`
	ValueP95           int                    `json:"value_p95"`
	Info               string                 `json:"info"`
}

// GetInfo returns statistics about the database. Sizes are estimated from
// the first entries in key order.
func (o *oakImpl) GetInfo() db.DatabaseInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	stats := util.NewPrefixStats()
	keyBytes, sampled := 0, 0
	o.tree.Ascend(func(it item) bool {
		stats.Add(it.key, it.value)
		keyBytes += len(it.key)
		sampled++
		return sampled < infoSamples
	})

	entries := o.tree.Len()
	sizeBytes := 0
	if sampled > 0 {
		perEntry := (keyBytes + int(stats.ValueSizes().Sum())) / sampled
		sizeBytes = perEntry * entries
	}

	meta := &Metadata{
		Degree:             o.degree,
		Closed:             o.closed,
		Prefixes:           stats.Used(),
		PrefixDistribution: stats.Distribution(),
		ValueP50:           stats.ValueSizes().MedianEstimate(),
		ValueP95:           stats.ValueSizes().PercentileEstimate(95),
		Info:               "Sizes and prefix statistics are estimated from a sample of the first entries.",
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		Entries:   entries,
		DbType:    db.ImplOak,
		SupportedFeatures: []db.Feature{
			db.FeatureGet, db.FeatureInsert, db.FeatureRemove,
			db.FeatureAtomic, db.FeatureOrdered, db.FeatureRanged,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific feature
func (o *oakImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureGet |
		db.FeatureInsert |
		db.FeatureRemove |
		db.FeatureAtomic |
		db.FeatureOrdered |
		db.FeatureRanged |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close drops all data. Every later operation returns ErrClosed.
func (o *oakImpl) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.tree.Clear(false)
	return nil
}
