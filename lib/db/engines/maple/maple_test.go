package maple

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/fulldump/biff"
)

func TestNotOrdered(t *testing.T) {
	store := NewMapleDB(nil)
	defer store.Close()

	biff.AssertFalse(store.SupportsFeature(db.FeatureOrdered))
	biff.AssertFalse(store.SupportsFeature(db.FeatureRanged))
	biff.AssertTrue(store.SupportsFeature(db.FeatureAtomic | db.FeatureSave | db.FeatureLoad))

	_, ok := db.AsOrdered(store)
	biff.AssertFalse(ok)
}

func TestLoadKeepsSeed(t *testing.T) {
	src := NewMapleDB(&DBOptions{NumShards: 4})
	defer src.Close()
	for i := 0; i < 100; i++ {
		src.Insert([]byte(fmt.Sprintf("key-%d", i)), []byte{byte(i)})
	}

	var buf bytes.Buffer
	biff.AssertNil(src.(db.Persistent).Save(&buf))

	// a different shard count must still find every key
	dst := NewMapleDB(&DBOptions{NumShards: 7})
	defer dst.Close()
	biff.AssertNil(dst.(db.Persistent).Load(bytes.NewReader(buf.Bytes())))

	for i := 0; i < 100; i++ {
		v, ok, err := dst.Get([]byte(fmt.Sprintf("key-%d", i)))
		biff.AssertNil(err)
		biff.AssertTrue(ok)
		biff.AssertEqual(v, []byte{byte(i)})
	}
	biff.AssertEqual(dst.GetInfo().Entries, 100)
}

func TestLoadRejectsOldVersion(t *testing.T) {
	store := NewMapleDB(nil)
	defer store.Close()
	store.Insert([]byte("a"), []byte("1"))

	snapshot := []byte("MAPLEDB\x00")
	snapshot = append(snapshot, 3) // format of earlier versions
	err := store.(db.Persistent).Load(bytes.NewReader(snapshot))
	biff.AssertTrue(err != nil)

	v, ok, _ := store.Get([]byte("a"))
	biff.AssertTrue(ok)
	biff.AssertEqual(string(v), "1")
}

func TestConditionalUpdateDoesNotCreate(t *testing.T) {
	store := NewMapleDB(nil)
	defer store.Close()
	a := store.(db.Atomic)

	swapped, err := a.ConditionalUpdate([]byte("k"), []byte("x"), []byte("y"))
	biff.AssertNil(err)
	biff.AssertFalse(swapped)

	_, ok, _ := store.Get([]byte("k"))
	biff.AssertFalse(ok)
	biff.AssertEqual(store.GetInfo().Entries, 0)
}

func TestGetInfo(t *testing.T) {
	store := NewMapleDB(&DBOptions{NumShards: 3})
	defer store.Close()
	for i := 0; i < 30; i++ {
		store.Insert([]byte{2, byte(i)}, []byte("value"))
	}

	info := store.GetInfo()
	biff.AssertEqual(info.DbType, db.ImplMaple)
	biff.AssertEqual(info.Entries, 30)
	biff.AssertTrue(info.SizeBytes > 0)

	meta := info.Metadata.(*Metadata)
	biff.AssertEqual(meta.ShardCount, 3)
	biff.AssertEqual(len(meta.Prefixes), 1)
	biff.AssertEqual(meta.Prefixes[0].Prefix, uint8(2))
	biff.AssertEqual(meta.Prefixes[0].Entries, 30)
}
