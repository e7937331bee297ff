package testing

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dStruct/lib/db"
)

// RunByteStoreBenchmarks runs all benchmarks for a ByteStore implementation
func RunByteStoreBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Insert", func(b *testing.B) {
		benchmarkInsert(b, factory())
	})

	b.Run("InsertExisting", func(b *testing.B) {
		benchmarkInsertExisting(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Remove", func(b *testing.B) {
		benchmarkRemove(b, factory())
	})

	b.Run("AtomicUpdate", func(b *testing.B) {
		benchmarkAtomicUpdate(b, factory())
	})

	b.Run("ConditionalUpdate", func(b *testing.B) {
		benchmarkConditionalUpdate(b, factory())
	})

	b.Run("GetLT", func(b *testing.B) {
		benchmarkGetLT(b, factory())
	})

	b.Run("Range", func(b *testing.B) {
		benchmarkRange(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// indexKey builds a key shaped like a list element: prefix byte + big endian index
func indexKey(prefix byte, i uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte{prefix}, i)
}

func fill(b *testing.B, database db.ByteStore, n int) {
	for i := 0; i < n; i++ {
		if _, _, err := database.Insert(indexKey(1, uint64(i)), []byte(fmt.Sprintf("value-%d", i))); err != nil {
			b.Fatalf("Insert failed: %v", err)
		}
	}
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Insert operation with new keys
func benchmarkInsert(b *testing.B, database db.ByteStore) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	var next atomic.Uint64
	value := []byte("test-value")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _ = database.Insert(indexKey(1, next.Add(1)), value)
		}
	})
}

// Benchmark for Insert operation with existing keys
func benchmarkInsertExisting(b *testing.B, database db.ByteStore) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	numKeys := 1000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _, _ = database.Insert(indexKey(1, uint64(counter%numKeys)), []byte("updated"))
			counter++
		}
	})
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.ByteStore) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet|db.FeatureInsert)

	numKeys := 1000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _, _ = database.Get(indexKey(1, uint64(counter%numKeys)))
			counter++
		}
	})
}

// Benchmark for Remove operation
func benchmarkRemove(b *testing.B, database db.ByteStore) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureRemove|db.FeatureInsert)

	fill(b, database, b.N)

	var next atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _ = database.Remove(indexKey(1, next.Add(1)-1))
		}
	})
}

// Benchmark for AtomicUpdate on a single hot key (a list length counter)
func benchmarkAtomicUpdate(b *testing.B, database db.ByteStore) {

	b.Cleanup(func() {
		database.Close()
	})

	a := requireAtomic(b, database)
	key := []byte{0}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = a.AtomicUpdate(key, func(old []byte, loaded bool) ([]byte, bool) {
				var n uint64
				if loaded {
					n = binary.BigEndian.Uint64(old)
				}
				return binary.BigEndian.AppendUint64(nil, n+1), true
			})
		}
	})
}

// Benchmark for ConditionalUpdate with a mix of matching and stale expectations
func benchmarkConditionalUpdate(b *testing.B, database db.ByteStore) {

	b.Cleanup(func() {
		database.Close()
	})

	a := requireAtomic(b, database)
	numKeys := 1000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := indexKey(1, uint64(counter%numKeys))
			old, _, _ := database.Get(key)
			_, _ = a.ConditionalUpdate(key, old, append(old, '!'))
			counter++
		}
	})
}

// Benchmark for GetLT as used to recover a list length
func benchmarkGetLT(b *testing.B, database db.ByteStore) {

	b.Cleanup(func() {
		database.Close()
	})

	o := requireOrdered(b, database)
	fill(b, database, 10000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _, _ = o.GetLT(indexKey(1, ^uint64(0)))
		}
	})
}

// Benchmark for short Range scans
func benchmarkRange(b *testing.B, database db.ByteStore) {

	b.Cleanup(func() {
		database.Close()
	})

	r := requireRanged(b, database)
	numKeys := 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			start := uint64(rnd.Intn(numKeys - 100))
			_ = r.Range(indexKey(1, start), indexKey(1, start+100), func(k, v []byte) bool {
				return true
			})
		}
	})
}

// Benchmark for Save and Load operations
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	p := requirePersistent(b, database)
	fill(b, database, 100000)

	var snapshot bytes.Buffer
	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			snapshot.Reset()
			if err := p.Save(&snapshot); err != nil {
				b.Fatalf("Save failed: %v", err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		restored := factory()
		defer restored.Close()
		rp, _ := db.AsPersistent(restored)
		for i := 0; i < b.N; i++ {
			if err := rp.Load(bytes.NewReader(snapshot.Bytes())); err != nil {
				b.Fatalf("Load failed: %v", err)
			}
		}
	})
}

// Benchmark for mixed operations (typical collection workload)
func benchmarkMixedUsage(b *testing.B, database db.ByteStore) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet|db.FeatureInsert|db.FeatureRemove)

	numKeys := 1000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := indexKey(1, uint64(rnd.Intn(numKeys)))
			switch rnd.Intn(10) {
			case 0, 1, 2, 3, 4, 5: // 60% reads
				_, _, _ = database.Get(key)
			case 6, 7, 8: // 30% writes
				_, _, _ = database.Insert(key, []byte("mixed"))
			default: // 10% removes
				_, _, _ = database.Remove(key)
			}
		}
	})
}
