package metered

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/logging"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

// Metric names exported by a metered store
const (
	OpsTotal    = "dstruct_backend_ops_total"
	ErrorsTotal = "dstruct_backend_errors_total"
	OpDuration  = "dstruct_backend_op_duration_seconds"
)

// opMetrics holds the pre-registered metrics of one operation
type opMetrics struct {
	calls    *metrics.Counter
	errors   *metrics.Counter
	duration *metrics.Histogram
}

// Store decorates a db.ByteStore with per operation counters and latency
// histograms. It forwards every capability of the wrapped store and
// advertises the same features.
//
// Thread-safety: Store is as safe for concurrent use as the wrapped store.
type Store struct {
	inner  db.ByteStore
	set    *metrics.Set
	engine string
	ops    map[string]*opMetrics
	log    logger.ILogger
}

var operations = []string{
	"get", "insert", "remove",
	"atomic_update", "conditional_update",
	"get_lt", "get_gt", "range",
	"save", "load",
}

// New wraps inner and registers its metrics in set. A nil set means the
// global set of the metrics package, which metrics.WritePrometheus exports.
// The engine label is taken from inner.GetInfo().DbType.
func New(inner db.ByteStore, set *metrics.Set) *Store {
	engine := string(inner.GetInfo().DbType)
	s := &Store{
		inner:  inner,
		set:    set,
		engine: engine,
		ops:    make(map[string]*opMetrics, len(operations)),
		log:    logging.GetLogger(logging.Metered),
	}
	for _, op := range operations {
		labels := fmt.Sprintf(`{engine=%q,op=%q}`, engine, op)
		s.ops[op] = &opMetrics{
			calls:    s.counter(OpsTotal + labels),
			errors:   s.counter(ErrorsTotal + labels),
			duration: s.histogram(OpDuration + labels),
		}
	}
	s.log.Debugf("metering %s engine", engine)
	return s
}

func (s *Store) counter(name string) *metrics.Counter {
	if s.set == nil {
		return metrics.GetOrCreateCounter(name)
	}
	return s.set.GetOrCreateCounter(name)
}

func (s *Store) histogram(name string) *metrics.Histogram {
	if s.set == nil {
		return metrics.GetOrCreateHistogram(name)
	}
	return s.set.GetOrCreateHistogram(name)
}

// Inner returns the wrapped store
func (s *Store) Inner() db.ByteStore {
	return s.inner
}

// Calls returns how often op was called. op is one of the lower case
// operation names used in the op label, e.g. "get" or "atomic_update".
func (s *Store) Calls(op string) uint64 {
	if m, ok := s.ops[op]; ok {
		return m.calls.Get()
	}
	return 0
}

// Errors returns how often op returned an error
func (s *Store) Errors(op string) uint64 {
	if m, ok := s.ops[op]; ok {
		return m.errors.Get()
	}
	return 0
}

// observe records one finished call of op
func (s *Store) observe(op string, start time.Time, err error) {
	m := s.ops[op]
	m.calls.Inc()
	m.duration.UpdateDuration(start)
	if err != nil {
		m.errors.Inc()
		s.log.Debugf("%s failed on %s: %v", op, s.engine, err)
	}
}

func missing(feature db.Feature) error {
	return fmt.Errorf("wrapped store does not support %s", feature)
}

// --------------------------------------------------------------------------
// ByteStore
// --------------------------------------------------------------------------

func (s *Store) Get(key []byte) (value []byte, loaded bool, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())
	return s.inner.Get(key)
}

func (s *Store) Insert(key, value []byte) (old []byte, loaded bool, err error) {
	defer func(start time.Time) { s.observe("insert", start, err) }(time.Now())
	return s.inner.Insert(key, value)
}

func (s *Store) Remove(key []byte) (old []byte, loaded bool, err error) {
	defer func(start time.Time) { s.observe("remove", start, err) }(time.Now())
	return s.inner.Remove(key)
}

func (s *Store) SupportsFeature(feature db.Feature) bool {
	return s.inner.SupportsFeature(feature)
}

func (s *Store) GetInfo() db.DatabaseInfo {
	return s.inner.GetInfo()
}

func (s *Store) Close() error {
	return s.inner.Close()
}

// --------------------------------------------------------------------------
// Capabilities
// --------------------------------------------------------------------------

func (s *Store) AtomicUpdate(key []byte, fn func(old []byte, loaded bool) ([]byte, bool)) (err error) {
	defer func(start time.Time) { s.observe("atomic_update", start, err) }(time.Now())
	a, ok := db.AsAtomic(s.inner)
	if !ok {
		return missing(db.FeatureAtomic)
	}
	return a.AtomicUpdate(key, fn)
}

func (s *Store) ConditionalUpdate(key, expected, value []byte) (swapped bool, err error) {
	defer func(start time.Time) { s.observe("conditional_update", start, err) }(time.Now())
	a, ok := db.AsAtomic(s.inner)
	if !ok {
		return false, missing(db.FeatureAtomic)
	}
	return a.ConditionalUpdate(key, expected, value)
}

func (s *Store) GetLT(key []byte) (k, v []byte, found bool, err error) {
	defer func(start time.Time) { s.observe("get_lt", start, err) }(time.Now())
	o, ok := db.AsOrdered(s.inner)
	if !ok {
		return nil, nil, false, missing(db.FeatureOrdered)
	}
	return o.GetLT(key)
}

func (s *Store) GetGT(key []byte) (k, v []byte, found bool, err error) {
	defer func(start time.Time) { s.observe("get_gt", start, err) }(time.Now())
	o, ok := db.AsOrdered(s.inner)
	if !ok {
		return nil, nil, false, missing(db.FeatureOrdered)
	}
	return o.GetGT(key)
}

func (s *Store) Range(start, end []byte, fn func(k, v []byte) bool) (err error) {
	defer func(begin time.Time) { s.observe("range", begin, err) }(time.Now())
	r, ok := db.AsRanged(s.inner)
	if !ok {
		return missing(db.FeatureRanged)
	}
	return r.Range(start, end, fn)
}

func (s *Store) Save(w io.Writer) (err error) {
	defer func(start time.Time) { s.observe("save", start, err) }(time.Now())
	p, ok := db.AsPersistent(s.inner)
	if !ok {
		return missing(db.FeatureSave)
	}
	return p.Save(w)
}

func (s *Store) Load(r io.Reader) (err error) {
	defer func(start time.Time) { s.observe("load", start, err) }(time.Now())
	p, ok := db.AsPersistent(s.inner)
	if !ok {
		return missing(db.FeatureLoad)
	}
	return p.Load(r)
}
