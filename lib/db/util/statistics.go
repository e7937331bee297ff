package util

import (
	"math"
	"sort"
	"sync"
)

// ----------------------------------------------------------------------------
// Summary statistics
// ----------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes mean, population standard deviation and the min/max
// values of a sample.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}

	ratio := 1.0
	if hi > 0 {
		ratio = lo / hi
	}

	return Stats{
		StdDeviation: math.Sqrt(sq / float64(len(values))),
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		MinMaxRatio:  ratio,
	}
}

// DistributionStats rates how evenly entries are spread over buckets
// (shards of a hash engine, prefixes of a schema, ...).
type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats computes quality metrics for a bucket size sample.
// A quality of 1 means every bucket holds the same number of entries.
func NewDistributionStats(bucketSizes []float64) DistributionStats {
	stats := NewStats(bucketSizes)

	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBoundaries are the upper bounds of the histogram buckets. Keys and
// values of collection entries are small, so the low end is fine grained.
var sizeBoundaries = []int{
	8, 16, 32, 64, 128, 256, 512, // bytes
	1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10, // KB
	1 << 20, 16 << 20, 256 << 20, // MB
}

// SizeHistogram tracks the distribution of entry sizes in exponential buckets.
// The last bucket collects every sample above the largest boundary.
//
// Thread-safety: All methods are safe for concurrent use.
type SizeHistogram struct {
	mutex   sync.RWMutex
	buckets []int64
	count   int64
	sum     int64
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{buckets: make([]int64, len(sizeBoundaries)+1)}
}

// AddSample adds a size sample to the histogram
func (h *SizeHistogram) AddSample(size int) {
	i := sort.SearchInts(sizeBoundaries, size)

	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.buckets[i]++
	h.count++
	h.sum += int64(size)
}

// Count returns the total number of samples
func (h *SizeHistogram) Count() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// Sum returns the sum of all samples
func (h *SizeHistogram) Sum() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.sum
}

// AverageSize returns the exact mean of all samples
func (h *SizeHistogram) AverageSize() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MedianEstimate estimates the median from the bucket counts
func (h *SizeHistogram) MedianEstimate() int {
	return h.PercentileEstimate(50)
}

// PercentileEstimate returns the midpoint of the bucket containing the given
// percentile (0-100). Out of range percentiles and empty histograms yield 0.
func (h *SizeHistogram) PercentileEstimate(percentile int) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	var cumulative int64
	for i, c := range h.buckets {
		cumulative += c
		if cumulative < target || c == 0 {
			continue
		}
		switch {
		case i == 0:
			return sizeBoundaries[0] / 2
		case i < len(sizeBoundaries):
			return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
		default:
			return sizeBoundaries[len(sizeBoundaries)-1] * 2
		}
	}
	return int(h.sum / h.count)
}

// SizeDistribution returns the bucket boundaries and the percentage of
// samples per bucket. The percentages slice has one more element than the
// boundaries (the overflow bucket).
func (h *SizeHistogram) SizeDistribution() ([]int, []float64) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	percentages := make([]float64, len(h.buckets))
	if h.count == 0 {
		return sizeBoundaries, percentages
	}
	for i, c := range h.buckets {
		percentages[i] = float64(c) * 100.0 / float64(h.count)
	}
	return sizeBoundaries, percentages
}

// Reset clears all histogram data
func (h *SizeHistogram) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.count, h.sum = 0, 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// ----------------------------------------------------------------------------
// PrefixStats
// ----------------------------------------------------------------------------

// PrefixStat summarizes the entries sharing one leading key byte.
type PrefixStat struct {
	Prefix     uint8 `json:"prefix"`
	Entries    int   `json:"entries"`
	KeyBytes   int   `json:"key_bytes"`
	ValueBytes int   `json:"value_bytes"`
}

// PrefixStats groups entries by the first byte of their key. Every logical
// collection of a schema owns exactly one such byte.
//
// Thread-safety: Not safe for concurrent use.
type PrefixStats struct {
	stats  [256]PrefixStat
	values *SizeHistogram
}

// NewPrefixStats creates an empty PrefixStats
func NewPrefixStats() *PrefixStats {
	p := &PrefixStats{values: NewSizeHistogram()}
	for i := range p.stats {
		p.stats[i].Prefix = uint8(i)
	}
	return p
}

// Add records one entry. Empty keys are ignored.
func (p *PrefixStats) Add(key, value []byte) {
	if len(key) == 0 {
		return
	}
	s := &p.stats[key[0]]
	s.Entries++
	s.KeyBytes += len(key)
	s.ValueBytes += len(value)
	p.values.AddSample(len(value))
}

// Used returns the stats of every prefix with at least one entry, in prefix order.
func (p *PrefixStats) Used() []PrefixStat {
	var out []PrefixStat
	for _, s := range p.stats {
		if s.Entries > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Distribution rates how evenly entries are spread over the used prefixes.
func (p *PrefixStats) Distribution() DistributionStats {
	used := p.Used()
	sizes := make([]float64, len(used))
	for i, s := range used {
		sizes[i] = float64(s.Entries)
	}
	return NewDistributionStats(sizes)
}

// ValueSizes returns the histogram of all recorded value sizes.
func (p *PrefixStats) ValueSizes() *SizeHistogram {
	return p.values
}
