package oak

import (
	"testing"

	"github.com/ValentinKolb/dStruct/lib/db"
	dbtesting "github.com/ValentinKolb/dStruct/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunByteStoreTests(t, "OakDB", func() db.ByteStore {
		return NewOakDB(nil)
	})
}

func TestSmallDegree(t *testing.T) {
	dbtesting.RunByteStoreTests(t, "OakDB(degree=2)", func() db.ByteStore {
		return NewOakDB(&DBOptions{Degree: 2})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunByteStoreBenchmarks(b, "OakDB", func() db.ByteStore {
		return NewOakDB(nil)
	})
}
