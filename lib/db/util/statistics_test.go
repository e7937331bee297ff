package util

import (
	"math"
	"testing"
)

func TestNewStats(t *testing.T) {
	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 {
		t.Errorf("Expected mean 5, got %f", s.Mean)
	}
	if s.StdDeviation != 2 {
		t.Errorf("Expected std deviation 2, got %f", s.StdDeviation)
	}
	if s.Min != 2 || s.Max != 9 {
		t.Errorf("Expected min 2 and max 9, got %f and %f", s.Min, s.Max)
	}

	if empty := NewStats(nil); empty != (Stats{}) {
		t.Errorf("Expected zero stats for empty input, got %+v", empty)
	}
}

func TestDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Errorf("Expected quality 1 for an even distribution, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{1, 1, 1, 100})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("Expected skewed distribution to rate lower, got %f", skewed.DistributionQuality)
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.MedianEstimate() != 0 || h.AverageSize() != 0 {
		t.Errorf("Expected empty histogram to report 0")
	}

	for i := 0; i < 90; i++ {
		h.AddSample(10) // bucket (8, 16]
	}
	for i := 0; i < 10; i++ {
		h.AddSample(2 << 20) // bucket (1MB, 16MB]
	}

	if h.Count() != 100 {
		t.Errorf("Expected 100 samples, got %d", h.Count())
	}
	if got := h.MedianEstimate(); got != 12 {
		t.Errorf("Expected median estimate 12, got %d", got)
	}
	if got := h.PercentileEstimate(95); got != (1<<20+16<<20)/2 {
		t.Errorf("Expected p95 in the MB bucket, got %d", got)
	}
	if got := h.PercentileEstimate(101); got != 0 {
		t.Errorf("Expected 0 for invalid percentile, got %d", got)
	}

	_, pct := h.SizeDistribution()
	var total float64
	for _, p := range pct {
		total += p
	}
	if math.Abs(total-100) > 1e-9 {
		t.Errorf("Expected percentages to sum to 100, got %f", total)
	}

	h.AddSample(1 << 30)
	if got := h.PercentileEstimate(100); got != sizeBoundaries[len(sizeBoundaries)-1]*2 {
		t.Errorf("Expected overflow estimate, got %d", got)
	}

	h.Reset()
	if h.Count() != 0 || h.Sum() != 0 {
		t.Errorf("Expected reset histogram to be empty")
	}
}

func TestPrefixStats(t *testing.T) {
	p := NewPrefixStats()
	p.Add([]byte{0, 1}, []byte("abc"))
	p.Add([]byte{0, 2}, []byte("de"))
	p.Add([]byte{3}, []byte("x"))
	p.Add(nil, []byte("ignored"))

	used := p.Used()
	if len(used) != 2 {
		t.Fatalf("Expected 2 used prefixes, got %d", len(used))
	}
	if used[0].Prefix != 0 || used[0].Entries != 2 || used[0].ValueBytes != 5 || used[0].KeyBytes != 4 {
		t.Errorf("Unexpected stats for prefix 0: %+v", used[0])
	}
	if used[1].Prefix != 3 || used[1].Entries != 1 {
		t.Errorf("Unexpected stats for prefix 3: %+v", used[1])
	}
	if p.ValueSizes().Count() != 3 {
		t.Errorf("Expected 3 value samples, got %d", p.ValueSizes().Count())
	}
	if q := p.Distribution().DistributionQuality; q <= 0 || q >= 1 {
		t.Errorf("Expected quality between 0 and 1, got %f", q)
	}
}

func TestHashBytes(t *testing.T) {
	a := HashBytes([]byte("key"), 1)
	if a != HashBytes([]byte("key"), 1) {
		t.Errorf("Expected hash to be deterministic")
	}
	if a == HashBytes([]byte("key"), 2) {
		t.Errorf("Expected seed to change the hash")
	}
	for i := 0; i < 1000; i++ {
		if idx := ShardIndex(HashBytes([]byte{byte(i), byte(i >> 8)}, 7), 13); idx < 0 || idx >= 13 {
			t.Fatalf("Shard index out of range: %d", idx)
		}
	}
}

func TestCloneBytes(t *testing.T) {
	if CloneBytes(nil) != nil {
		t.Errorf("Expected nil to stay nil")
	}
	src := []byte("abc")
	c := CloneBytes(src)
	c[0] = 'X'
	if src[0] != 'a' {
		t.Errorf("Expected clone to be independent of the source")
	}
	if e := CloneBytes([]byte{}); e == nil || len(e) != 0 {
		t.Errorf("Expected empty slice to stay non-nil and empty")
	}
}
