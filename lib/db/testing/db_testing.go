package testing

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dStruct/lib/db"
)

// DBFactory is a function that creates a new empty instance of a ByteStore implementation
type DBFactory func() db.ByteStore

// RunByteStoreTests runs a comprehensive test suite for a ByteStore implementation.
// Capabilities the implementation does not advertise are skipped.
func RunByteStoreTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Get", func(t *testing.T) {
			testInsertGet(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("Copies", func(t *testing.T) {
			testCopies(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("AtomicUpdate", func(t *testing.T) {
			testAtomicUpdate(t, factory())
		})

		t.Run("ConditionalUpdate", func(t *testing.T) {
			testConditionalUpdate(t, factory())
		})

		t.Run("ConcurrentAtomicUpdate", func(t *testing.T) {
			testConcurrentAtomicUpdate(t, factory())
		})

		t.Run("Ordered", func(t *testing.T) {
			testOrdered(t, factory())
		})

		t.Run("OrderedPrefixes", func(t *testing.T) {
			testOrderedPrefixes(t, factory())
		})

		t.Run("Ranged", func(t *testing.T) {
			testRanged(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.ByteStore, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func requireAtomic(t testing.TB, database db.ByteStore) db.Atomic {
	a, ok := db.AsAtomic(database)
	if !ok {
		t.Skip()
	}
	return a
}

func requireOrdered(t testing.TB, database db.ByteStore) db.Ordered {
	o, ok := db.AsOrdered(database)
	if !ok {
		t.Skip()
	}
	return o
}

func requireRanged(t testing.TB, database db.ByteStore) db.Ranged {
	r, ok := db.AsRanged(database)
	if !ok {
		t.Skip()
	}
	return r
}

func requirePersistent(t testing.TB, database db.ByteStore) db.Persistent {
	p, ok := db.AsPersistent(database)
	if !ok {
		t.Skip()
	}
	return p
}

func mustInsert(t testing.TB, database db.ByteStore, key, value string) {
	if _, _, err := database.Insert([]byte(key), []byte(value)); err != nil {
		t.Fatalf("Insert(%q) failed: %v", key, err)
	}
}

func expectValue(t testing.TB, database db.ByteStore, key, want string) {
	t.Helper()
	got, loaded, err := database.Get([]byte(key))
	if err != nil {
		t.Errorf("Get(%q) failed: %v", key, err)
		return
	}
	if !loaded {
		t.Errorf("Expected key %q to exist", key)
		return
	}
	if string(got) != want {
		t.Errorf("Expected value %q for key %q, got %q", want, key, got)
	}
}

func expectAbsent(t testing.TB, database db.ByteStore, key string) {
	t.Helper()
	_, loaded, err := database.Get([]byte(key))
	if err != nil {
		t.Errorf("Get(%q) failed: %v", key, err)
	}
	if loaded {
		t.Errorf("Expected key %q to be absent", key)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, database db.ByteStore) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet)

	old, loaded, err := database.Insert([]byte("test-key"), []byte("test-value1"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if loaded || old != nil {
		t.Errorf("Expected no previous value, got %q", old)
	}
	expectValue(t, database, "test-key", "test-value1")

	old, loaded, err = database.Insert([]byte("test-key"), []byte("test-value2"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !loaded || string(old) != "test-value1" {
		t.Errorf("Expected previous value test-value1, got %q (loaded=%v)", old, loaded)
	}
	expectValue(t, database, "test-key", "test-value2")

	expectAbsent(t, database, "nonexistent-key")
}

func testRemove(t *testing.T, database db.ByteStore) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet|db.FeatureRemove)

	mustInsert(t, database, "test-key", "test-value")

	old, loaded, err := database.Remove([]byte("test-key"))
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !loaded || string(old) != "test-value" {
		t.Errorf("Expected removed value test-value, got %q (loaded=%v)", old, loaded)
	}
	expectAbsent(t, database, "test-key")

	_, loaded, err = database.Remove([]byte("test-key"))
	if err != nil {
		t.Errorf("Removing a missing key must not fail: %v", err)
	}
	if loaded {
		t.Errorf("Expected loaded=false when removing a missing key")
	}
}

func testCopies(t *testing.T, database db.ByteStore) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet)

	key := []byte("test-key")
	value := []byte("test-value")
	if _, _, err := database.Insert(key, value); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// modify the input slices after the insert
	key[0] = 'X'
	value[0] = 'X'
	expectValue(t, database, "test-key", "test-value")

	// modify the returned slice
	got, _, _ := database.Get([]byte("test-key"))
	got[0] = 'Y'
	expectValue(t, database, "test-key", "test-value")
}

func testEdgeCases(t *testing.T, database db.ByteStore) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet)

	// empty values are values
	if _, _, err := database.Insert([]byte("empty"), []byte{}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	got, loaded, err := database.Get([]byte("empty"))
	if err != nil || !loaded || len(got) != 0 {
		t.Errorf("Expected empty value to be stored, got %q (loaded=%v, err=%v)", got, loaded, err)
	}

	// binary keys with zero bytes
	k1 := []byte{0, 0, 1}
	k2 := []byte{0, 0}
	if _, _, err := database.Insert(k1, []byte("a")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, _, err := database.Insert(k2, []byte("b")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if v, _, _ := database.Get(k1); string(v) != "a" {
		t.Errorf("Expected a for key %v, got %q", k1, v)
	}
	if v, _, _ := database.Get(k2); string(v) != "b" {
		t.Errorf("Expected b for key %v, got %q", k2, v)
	}

	// large value
	large := bytes.Repeat([]byte("x"), 1<<20)
	if _, _, err := database.Insert([]byte("large"), large); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if v, _, _ := database.Get([]byte("large")); !bytes.Equal(v, large) {
		t.Errorf("Large value was not stored correctly")
	}
}

func testAtomicUpdate(t *testing.T, database db.ByteStore) {
	defer database.Close()

	a := requireAtomic(t, database)

	// create from absent
	err := a.AtomicUpdate([]byte("counter"), func(old []byte, loaded bool) ([]byte, bool) {
		if loaded {
			t.Errorf("Expected key to be absent on first update")
		}
		return []byte("1"), true
	})
	if err != nil {
		t.Fatalf("AtomicUpdate failed: %v", err)
	}
	expectValue(t, database, "counter", "1")

	// modify
	err = a.AtomicUpdate([]byte("counter"), func(old []byte, loaded bool) ([]byte, bool) {
		if !loaded || string(old) != "1" {
			t.Errorf("Expected old value 1, got %q (loaded=%v)", old, loaded)
		}
		return append(old, '2'), true
	})
	if err != nil {
		t.Fatalf("AtomicUpdate failed: %v", err)
	}
	expectValue(t, database, "counter", "12")

	// delete
	err = a.AtomicUpdate([]byte("counter"), func(old []byte, loaded bool) ([]byte, bool) {
		return nil, false
	})
	if err != nil {
		t.Fatalf("AtomicUpdate failed: %v", err)
	}
	expectAbsent(t, database, "counter")

	// absent and not kept stays absent
	err = a.AtomicUpdate([]byte("other"), func(old []byte, loaded bool) ([]byte, bool) {
		return []byte("ignored"), false
	})
	if err != nil {
		t.Fatalf("AtomicUpdate failed: %v", err)
	}
	expectAbsent(t, database, "other")
}

func testConditionalUpdate(t *testing.T, database db.ByteStore) {
	defer database.Close()

	a := requireAtomic(t, database)
	key := []byte("cas")

	swap := func(expected, value []byte, want bool) {
		t.Helper()
		swapped, err := a.ConditionalUpdate(key, expected, value)
		if err != nil {
			t.Fatalf("ConditionalUpdate failed: %v", err)
		}
		if swapped != want {
			t.Errorf("ConditionalUpdate(%q, %q) swapped=%v, expected %v", expected, value, swapped, want)
		}
	}

	swap([]byte("x"), []byte("v1"), false) // absent but expected a value
	expectAbsent(t, database, "cas")

	swap(nil, []byte("v1"), true) // insert if absent
	expectValue(t, database, "cas", "v1")

	swap(nil, []byte("v2"), false) // present but expected absent
	swap([]byte("v0"), []byte("v2"), false)
	expectValue(t, database, "cas", "v1")

	swap([]byte("v1"), []byte("v2"), true)
	expectValue(t, database, "cas", "v2")

	swap([]byte("v2"), nil, true) // delete if unchanged
	expectAbsent(t, database, "cas")

	swap(nil, nil, true) // absent stays absent
	expectAbsent(t, database, "cas")
}

func testConcurrentAtomicUpdate(t *testing.T, database db.ByteStore) {
	defer database.Close()

	a := requireAtomic(t, database)

	const (
		workers    = 8
		increments = 200
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < increments; i++ {
				err := a.AtomicUpdate([]byte("counter"), func(old []byte, loaded bool) ([]byte, bool) {
					var n uint64
					if loaded {
						n = binary.BigEndian.Uint64(old)
					}
					return binary.BigEndian.AppendUint64(nil, n+1), true
				})
				if err != nil {
					t.Errorf("AtomicUpdate failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	v, _, err := database.Get([]byte("counter"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := binary.BigEndian.Uint64(v); got != workers*increments {
		t.Errorf("Expected %d increments, got %d (lost updates)", workers*increments, got)
	}
}

func testOrdered(t *testing.T, database db.ByteStore) {
	defer database.Close()

	o := requireOrdered(t, database)

	for _, k := range []string{"b", "d", "f"} {
		mustInsert(t, database, k, "v"+k)
	}

	cases := []struct {
		name  string
		fn    func([]byte) ([]byte, []byte, bool, error)
		key   string
		want  string
		found bool
	}{
		{"GetLT existing", o.GetLT, "d", "b", true},
		{"GetLT between", o.GetLT, "e", "d", true},
		{"GetLT above all", o.GetLT, "z", "f", true},
		{"GetLT first", o.GetLT, "b", "", false},
		{"GetLT below all", o.GetLT, "a", "", false},
		{"GetGT existing", o.GetGT, "d", "f", true},
		{"GetGT between", o.GetGT, "c", "d", true},
		{"GetGT below all", o.GetGT, "", "b", true},
		{"GetGT last", o.GetGT, "f", "", false},
	}

	for _, c := range cases {
		k, v, found, err := c.fn([]byte(c.key))
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
			continue
		}
		if found != c.found {
			t.Errorf("%s: expected found=%v, got %v", c.name, c.found, found)
			continue
		}
		if found && (string(k) != c.want || string(v) != "v"+c.want) {
			t.Errorf("%s: expected %q, got %q=%q", c.name, c.want, k, v)
		}
	}
}

// testOrderedPrefixes checks the lookups the collection layer uses to recover
// list bounds: prefix byte followed by a big endian index.
func testOrderedPrefixes(t *testing.T, database db.ByteStore) {
	defer database.Close()

	o := requireOrdered(t, database)

	index := func(prefix byte, i uint64) []byte {
		return binary.BigEndian.AppendUint64([]byte{prefix}, i)
	}

	for _, i := range []uint64{0, 1, 255, 256, 1 << 40} {
		if _, _, err := database.Insert(index(1, i), []byte("x")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if _, _, err := database.Insert(index(2, 0), []byte("y")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, _, err := database.Insert([]byte{0}, []byte("z")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	k, _, found, err := o.GetLT(index(1, ^uint64(0)))
	if err != nil || !found || !bytes.Equal(k, index(1, 1<<40)) {
		t.Errorf("Expected last index of prefix 1, got %v (found=%v, err=%v)", k, found, err)
	}

	k, _, found, err = o.GetGT(index(1, 0))
	if err != nil || !found || !bytes.Equal(k, index(1, 1)) {
		t.Errorf("Expected index 1 of prefix 1, got %v (found=%v, err=%v)", k, found, err)
	}

	// an empty prefix finds a neighbour with another prefix
	k, _, found, err = o.GetLT(index(3, ^uint64(0)))
	if err != nil || !found || k[0] != 2 {
		t.Errorf("Expected a key of prefix 2, got %v (found=%v, err=%v)", k, found, err)
	}
}

func testRanged(t *testing.T, database db.ByteStore) {
	defer database.Close()

	r := requireRanged(t, database)

	for i := 0; i < 600; i++ {
		mustInsert(t, database, fmt.Sprintf("k%04d", i), fmt.Sprintf("v%d", i))
	}
	mustInsert(t, database, "a", "before")
	mustInsert(t, database, "z", "after")

	collect := func(start, end []byte, limit int) []string {
		var keys []string
		err := r.Range(start, end, func(k, v []byte) bool {
			keys = append(keys, string(k))
			return limit <= 0 || len(keys) < limit
		})
		if err != nil {
			t.Fatalf("Range failed: %v", err)
		}
		return keys
	}

	keys := collect([]byte("k"), []byte("l"), 0)
	if len(keys) != 600 {
		t.Fatalf("Expected 600 keys, got %d", len(keys))
	}
	for i, k := range keys {
		if want := fmt.Sprintf("k%04d", i); k != want {
			t.Fatalf("Expected key %s at position %d, got %s", want, i, k)
		}
	}

	keys = collect([]byte("k0010"), []byte("k0013"), 0)
	if len(keys) != 3 || keys[0] != "k0010" || keys[2] != "k0012" {
		t.Errorf("Expected [k0010 k0011 k0012], got %v", keys)
	}

	keys = collect([]byte("k0599"), nil, 0)
	if len(keys) != 2 || keys[1] != "z" {
		t.Errorf("Expected unbounded range to reach z, got %v", keys)
	}

	keys = collect(nil, nil, 5)
	if len(keys) != 5 || keys[0] != "a" {
		t.Errorf("Expected early stop after 5 keys starting at a, got %v", keys)
	}

	keys = collect([]byte("m"), []byte("n"), 0)
	if len(keys) != 0 {
		t.Errorf("Expected empty range, got %v", keys)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	defer database.Close()

	p := requirePersistent(t, database)

	for i := 0; i < 1000; i++ {
		mustInsert(t, database, fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}
	if _, _, err := database.Insert([]byte("empty"), []byte{}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var buf bytes.Buffer
	if err := p.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := factory()
	defer restored.Close()
	mustInsert(t, restored, "stale", "replaced by load")

	rp, _ := db.AsPersistent(restored)
	if err := rp.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 1000; i++ {
		expectValue(t, restored, fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}
	if v, loaded, _ := restored.Get([]byte("empty")); !loaded || len(v) != 0 {
		t.Errorf("Expected empty value to survive Save/Load")
	}
	expectAbsent(t, restored, "stale")

	if err := rp.Load(bytes.NewReader([]byte("not a snapshot at all"))); err == nil {
		t.Errorf("Expected Load to reject invalid data")
	}
	expectValue(t, restored, "key-1", "value-1")
}

func testClose(t *testing.T, database db.ByteStore) {
	mustInsert(t, database, "key", "value")

	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, _, err := database.Get([]byte("key")); err == nil {
		t.Errorf("Expected Get on a closed database to fail")
	}
	if _, _, err := database.Insert([]byte("key"), []byte("value")); err == nil {
		t.Errorf("Expected Insert on a closed database to fail")
	}
}

func testInfo(t *testing.T, database db.ByteStore) {
	defer database.Close()

	for i := 0; i < 100; i++ {
		mustInsert(t, database, fmt.Sprintf("key-%d", i), "value")
	}

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected a database type")
	}
	if info.Entries != 100 {
		t.Errorf("Expected 100 entries, got %d", info.Entries)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Expected a positive size estimate, got %d", info.SizeBytes)
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("Feature %s is listed but not supported", f)
		}
	}
}
