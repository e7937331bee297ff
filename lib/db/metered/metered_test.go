package metered

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/db/engines/maple"
	"github.com/ValentinKolb/dStruct/lib/db/engines/oak"
	dbtesting "github.com/ValentinKolb/dStruct/lib/db/testing"
	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeteredOak(t *testing.T) {
	dbtesting.RunByteStoreTests(t, "Metered(OakDB)", func() db.ByteStore {
		return New(oak.NewOakDB(nil), metrics.NewSet())
	})
}

func TestMeteredMaple(t *testing.T) {
	dbtesting.RunByteStoreTests(t, "Metered(MapleDB)", func() db.ByteStore {
		return New(maple.NewMapleDB(nil), metrics.NewSet())
	})
}

func TestCountsCallsAndErrors(t *testing.T) {
	faulty := dbtesting.NewFaultyStore(oak.NewOakDB(nil))
	s := New(faulty, metrics.NewSet())
	defer s.Close()

	_, _, err := s.Insert([]byte("a"), []byte("1"))
	require.NoError(t, err)
	_, _, err = s.Get([]byte("a"))
	require.NoError(t, err)

	faulty.Fail(dbtesting.OpGet)
	_, _, err = s.Get([]byte("a"))
	require.ErrorIs(t, err, dbtesting.ErrInjected)

	assert.Equal(t, uint64(1), s.Calls("insert"))
	assert.Equal(t, uint64(2), s.Calls("get"))
	assert.Equal(t, uint64(1), s.Errors("get"))
	assert.Equal(t, uint64(0), s.Errors("insert"))
	assert.Equal(t, uint64(0), s.Calls("unknown"))
}

func TestUnsupportedCapability(t *testing.T) {
	s := New(maple.NewMapleDB(nil), metrics.NewSet())
	defer s.Close()

	_, ok := db.AsOrdered(s)
	assert.False(t, ok)

	_, _, _, err := s.GetLT([]byte("a"))
	assert.Error(t, err)
	assert.Equal(t, uint64(1), s.Errors("get_lt"))
}

func TestPrometheusOutput(t *testing.T) {
	set := metrics.NewSet()
	s := New(oak.NewOakDB(nil), set)
	defer s.Close()

	s.Insert([]byte("k"), []byte("v"))

	var buf bytes.Buffer
	set.WritePrometheus(&buf)
	out := buf.String()

	assert.True(t, strings.Contains(out, `dstruct_backend_ops_total{engine="oak",op="insert"} 1`), out)
	assert.True(t, strings.Contains(out, `dstruct_backend_op_duration_seconds_bucket{engine="oak",op="insert"`), out)
}
