package maple

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dStruct/lib/db/util"
	"github.com/ValentinKolb/dStruct/lib/logging"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum        = "MAPLEDB\x00" // File format identifier
	mapleVersion    = 4             // Database version
	samplesPerShard = 100           // Entries sampled per shard by GetInfo
)

// ErrClosed is returned by every operation on a closed database
var ErrClosed = errors.New("maple: database is closed")

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a high-performance unordered database with sharded data
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for hash function
	shards    []*internal.Shard // Array of shards

	// swapMu protects seed and shards against Load. Every other
	// operation only takes the read side.
	swapMu sync.RWMutex
	closed atomic.Bool
	log    logger.ILogger
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional).
// Maple supports atomic updates and snapshots but keeps no key order, so it
// serves Map and scalar fields but not List or Deque fields.
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.ByteStore {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards < 1 {
		opts.NumShards = runtime.NumCPU()
	}

	return &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(), // Generate a seed for this mapleImpl instance
		shards:    internal.NewShards(opts.NumShards),
		log:       logging.GetLogger(logging.Maple),
	}
}

// shard returns the shard responsible for key. Callers must hold swapMu.
func (maple *mapleImpl) shard(key []byte) *internal.Shard {
	return internal.GetShard(key, maple.seed, maple.shards)
}

// enter takes the read side of swapMu and fails if the database is closed.
// On success the caller must call maple.swapMu.RUnlock.
func (maple *mapleImpl) enter() error {
	maple.swapMu.RLock()
	if maple.closed.Load() {
		maple.swapMu.RUnlock()
		return ErrClosed
	}
	return nil
}

// --------------------------------------------------------------------------
// ByteStore Interface Methods
// --------------------------------------------------------------------------

// Get retrieves a value for a key.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key []byte) ([]byte, bool, error) {
	if err := maple.enter(); err != nil {
		return nil, false, err
	}
	defer maple.swapMu.RUnlock()

	value, ok := maple.shard(key).Data.Load(string(key))
	if !ok {
		return nil, false, nil
	}
	return util.CloneBytes(value), true, nil
}

// Insert stores a copy of value under key and returns the previous value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Insert(key, value []byte) ([]byte, bool, error) {
	if err := maple.enter(); err != nil {
		return nil, false, err
	}
	defer maple.swapMu.RUnlock()

	// Copy value to prevent memory corruption
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	old, loaded := maple.shard(key).Data.LoadAndStore(string(key), valueCopy)
	if !loaded {
		return nil, false, nil
	}
	return old, true, nil
}

// Remove deletes key and returns the removed value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Remove(key []byte) ([]byte, bool, error) {
	if err := maple.enter(); err != nil {
		return nil, false, err
	}
	defer maple.swapMu.RUnlock()

	old, loaded := maple.shard(key).Data.LoadAndDelete(string(key))
	if !loaded {
		return nil, false, nil
	}
	return old, true, nil
}

// --------------------------------------------------------------------------
// Atomic Interface Methods
// --------------------------------------------------------------------------

// AtomicUpdate runs fn on the current value of key inside the shard's
// Compute, which serializes all writers of that key.
//
// Thread-safety: This method is thread-safe. fn must not call back into the database.
func (maple *mapleImpl) AtomicUpdate(key []byte, fn func(old []byte, loaded bool) ([]byte, bool)) error {
	if err := maple.enter(); err != nil {
		return err
	}
	defer maple.swapMu.RUnlock()

	maple.shard(key).Data.Compute(string(key), func(old []byte, loaded bool) ([]byte, bool) {
		value, keep := fn(util.CloneBytes(old), loaded)
		if !keep {
			return nil, true // delete (a no-op if the key did not exist)
		}
		valueCopy := make([]byte, len(value))
		copy(valueCopy, value)
		return valueCopy, false
	})
	return nil
}

// ConditionalUpdate swaps the value of key if it currently equals expected.
// A nil expected requires the key to be absent, a nil value removes the key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) ConditionalUpdate(key, expected, value []byte) (bool, error) {
	if err := maple.enter(); err != nil {
		return false, err
	}
	defer maple.swapMu.RUnlock()

	var swapped bool
	maple.shard(key).Data.Compute(string(key), func(old []byte, loaded bool) ([]byte, bool) {
		matches := (expected == nil && !loaded) || (expected != nil && loaded && bytes.Equal(old, expected))
		if !matches {
			// keep the current state; a missing key must not be created
			return old, !loaded
		}

		swapped = true
		if value == nil {
			return nil, true
		}
		valueCopy := make([]byte, len(value))
		copy(valueCopy, value)
		return valueCopy, false
	})
	return swapped, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer
// Concurrent reading and writing is allowed during Save operation
//
// Format (little endian):
//  1. Magic number "MAPLEDB\x00"
//  2. Version (uint8)
//  3. Seed (uint64)
//  4. Number of entries (uint64)
//  5. For each entry: key length (uint32), key, value length (uint32), value
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load. Each shard is copied without blocking modifications, so the
// snapshot is not a single point in time.
func (maple *mapleImpl) Save(w io.Writer) error {
	if err := maple.enter(); err != nil {
		return err
	}
	defer maple.swapMu.RUnlock()

	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	type entryToSave struct {
		key   string
		value []byte
	}

	// Collect snapshots of all shards
	var entries []entryToSave
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, value []byte) bool {
			entries = append(entries, entryToSave{key, value})
			return true
		})
	}

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write maple version
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	// Write seed
	if err := binary.Write(bw, binary.LittleEndian, maple.seed); err != nil {
		return err
	}

	// Write total data entries count
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	// Write data entries
	for _, e := range entries {
		if err := writeChunk(bw, []byte(e.key)); err != nil {
			return err
		}
		if err := writeChunk(bw, e.value); err != nil {
			return err
		}
	}

	maple.log.Debugf("saved %d entries from %d shards", len(entries), len(maple.shards))

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores a database from the reader. The snapshot is read into fresh
// shards first, so on error the database keeps its previous content.
//
// Thread-safety: This method is thread-safe, the swap waits for running operations.
func (maple *mapleImpl) Load(r io.Reader) error {

	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	// Read seed
	var seed uint64
	if err := binary.Read(br, binary.LittleEndian, &seed); err != nil {
		return err
	}

	// Read data entries count
	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// Recreate empty shards with the loaded seed
	shards := internal.NewShards(maple.numShards)
	for i := uint64(0); i < count; i++ {
		key, err := readChunk(br)
		if err != nil {
			return err
		}
		value, err := readChunk(br)
		if err != nil {
			return err
		}
		internal.GetShard(key, seed, shards).Data.Store(string(key), value)
	}

	maple.swapMu.Lock()
	defer maple.swapMu.Unlock()
	if maple.closed.Load() {
		return ErrClosed
	}
	maple.shards = shards
	maple.seed = seed

	maple.log.Infof("loaded %d entries", count)
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
	ShardCount        int                    `json:"shard_count"`
	ShardDistribution util.DistributionStats `json:"shard_distribution"`
	Prefixes          []util.PrefixStat      `json:"prefixes"`
	Info              string                 `json:"info"`
}

// GetInfo returns statistics about the database. Entries is exact, sizes are
// estimated from a sample of every shard.
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.swapMu.RLock()
	defer maple.swapMu.RUnlock()

	histogram := util.NewSizeHistogram()
	wg := sync.WaitGroup{}
	wg.Add(len(maple.shards))

	// more stats
	mu := sync.Mutex{}
	samplesCount := 0
	keyBytes := 0
	prefixes := util.NewPrefixStats()
	shardSizes := make([]float64, len(maple.shards))

	// concurrently collect samples from all shards
	for shardIndex, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			localKeyBytes := 0
			local := make(map[string][]byte, samplesPerShard)
			s.Data.Range(func(key string, value []byte) bool {
				histogram.AddSample(len(value))
				localKeyBytes += len(key)
				local[key] = value

				// only sample a few entries per shard
				count++
				return count < samplesPerShard
			})

			mu.Lock()
			defer mu.Unlock()

			samplesCount += count
			keyBytes += localKeyBytes
			for k, v := range local {
				prefixes.Add([]byte(k), v)
			}
			shardSizes[i] = float64(s.Data.Size())
		}(shardIndex, shard)
	}

	// wait for all shards to finish
	wg.Wait()

	entries := 0
	for _, n := range shardSizes {
		entries += int(n)
	}

	sizeBytes := 0
	if samplesCount > 0 {
		// weighted estimate (60% median, 40% average) per entry
		perEntry := (histogram.MedianEstimate()*60+histogram.AverageSize()*40)/100 + keyBytes/samplesCount
		sizeBytes = perEntry * entries
	}

	meta := &Metadata{
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		Prefixes:          prefixes.Used(),
		Info:              "SizeBytes and prefix statistics are estimates, Entries is exact.",
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		Entries:   entries,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureGet, db.FeatureInsert, db.FeatureRemove,
			db.FeatureAtomic,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureGet |
		db.FeatureInsert |
		db.FeatureRemove |
		db.FeatureAtomic |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close drops all data. Every later operation returns ErrClosed.
func (maple *mapleImpl) Close() error {
	maple.swapMu.Lock()
	defer maple.swapMu.Unlock()
	maple.closed.Store(true)
	for _, shard := range maple.shards {
		shard.Data.Clear()
	}
	return nil
}
