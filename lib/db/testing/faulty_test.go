package testing

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/db/engines/oak"
)

func TestFaultyStoreConformance(t *testing.T) {
	RunByteStoreTests(t, "FaultyStore(OakDB)", func() db.ByteStore {
		return NewFaultyStore(oak.NewOakDB(nil))
	})
}

func TestFaultyStoreFailAfter(t *testing.T) {
	f := NewFaultyStore(oak.NewOakDB(nil))
	defer f.Close()

	f.FailAfter(2, OpInsert)

	for i := 0; i < 2; i++ {
		if _, _, err := f.Insert([]byte{byte(i)}, []byte("v")); err != nil {
			t.Fatalf("insert %d failed early: %v", i, err)
		}
	}
	if _, _, err := f.Insert([]byte{2}, []byte("v")); !errors.Is(err, ErrInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	// other operations are not affected
	if _, _, err := f.Get([]byte{0}); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	f.Heal()
	if _, _, err := f.Insert([]byte{2}, []byte("v")); err != nil {
		t.Fatalf("insert after heal failed: %v", err)
	}

	if got := f.Calls(OpInsert); got != 4 {
		t.Errorf("expected 4 insert calls, got %d", got)
	}
	if got := f.Inner().GetInfo().Entries; got != 3 {
		t.Errorf("expected 3 entries, got %d", got)
	}
}

func TestFaultyStoreFailAll(t *testing.T) {
	f := NewFaultyStore(oak.NewOakDB(nil))
	defer f.Close()

	f.Fail()
	if _, err := f.ConditionalUpdate([]byte("k"), nil, []byte("v")); !errors.Is(err, ErrInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, _, _, err := f.GetLT([]byte("k")); !errors.Is(err, ErrInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, ok, _ := f.Inner().Get([]byte("k")); ok {
		t.Fatal("failed conditional update must not write")
	}
}
