package perf

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dStruct/cmd/util"
	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/logging"
	"github.com/ValentinKolb/dStruct/lib/schema"
	"github.com/ValentinKolb/dStruct/lib/store"
	vmetrics "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	log = logging.GetLogger(logging.CLI)

	// PerfCmd represents the perf command
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the collection types",
		PreRunE: processPerfConfig,
		RunE:    run,
	}
	perfNumThreads = 10
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)

	// latency of single operations, sampled by all benchmarks
	timers = gometrics.NewRegistry()
)

var benchFields = []schema.Field{
	schema.ListField("list"),
	schema.DequeField("deque"),
	schema.MapField("map"),
	schema.DefaultField("counter"),
	schema.OptionField("option"),
}

func init() {
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. list-push,map-get)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per benchmark"))
	key = "keys"
	PerfCmd.Flags().Int(key, 100, util.WrapString("How many different map keys to use"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "metrics"
	PerfCmd.Flags().Bool(key, false, util.WrapString("Meter the engine and print its metrics in Prometheus text format"))
}

func processPerfConfig(cmd *cobra.Command, args []string) error {
	if err := util.BindCommandFlags(cmd, args); err != nil {
		return err
	}

	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// bench describes one benchmark. op is called once per iteration with a
// per goroutine counter.
type bench struct {
	name    string
	ordered bool
	prepare func(s *schema.Schema) (op func(i int) error, err error)
}

var benches = []bench{
	{name: "list-push", ordered: true, prepare: func(s *schema.Schema) (func(int) error, error) {
		l, err := schema.List[int](s, "list")
		if err != nil {
			return nil, err
		}
		return func(i int) error { return l.Push(i) }, nil
	}},
	{name: "list-get", ordered: true, prepare: func(s *schema.Schema) (func(int) error, error) {
		l, err := schema.List[int](s, "list")
		if err != nil {
			return nil, err
		}
		if l.IsEmpty() {
			if err := l.Extend(make([]int, perfKeySpread)); err != nil {
				return nil, err
			}
		}
		n := l.Len()
		return func(i int) error {
			_, _, err := l.Get(uint64(i) % n)
			return err
		}, nil
	}},
	{name: "deque-queue", ordered: true, prepare: func(s *schema.Schema) (func(int) error, error) {
		d, err := schema.Deque[int](s, "deque")
		if err != nil {
			return nil, err
		}
		// one end each, concurrent pops at both ends need external locking
		return func(i int) error {
			if i%2 == 0 {
				return d.PushBack(i)
			}
			_, _, err := d.PopFront()
			return err
		}, nil
	}},
	{name: "map-insert", prepare: func(s *schema.Schema) (func(int) error, error) {
		m, err := schema.Map[int, string](s, "map")
		if err != nil {
			return nil, err
		}
		return func(i int) error {
			_, _, err := m.Insert(i%perfKeySpread, "test")
			return err
		}, nil
	}},
	{name: "map-get", prepare: func(s *schema.Schema) (func(int) error, error) {
		m, err := schema.Map[int, string](s, "map")
		if err != nil {
			return nil, err
		}
		return func(i int) error {
			_, _, err := m.Get(i % perfKeySpread)
			return err
		}, nil
	}},
	{name: "counter-update", prepare: func(s *schema.Schema) (func(int) error, error) {
		c, err := schema.Default[int64](s, "counter")
		if err != nil {
			return nil, err
		}
		return func(int) error { return c.Update(func(v int64) int64 { return v + 1 }) }, nil
	}},
	{name: "option-cas", prepare: func(s *schema.Schema) (func(int) error, error) {
		o, err := schema.Option[int](s, "option")
		if err != nil {
			return nil, err
		}
		return func(i int) error {
			_, err := o.ConditionalUpdate(store.None[int](), store.Some(i))
			if err == nil {
				err = o.Clear()
			}
			return err
		}, nil
	}},
}

func run(_ *cobra.Command, _ []string) error {
	bs, err := util.GetEngine(viper.GetBool("metrics"))
	if err != nil {
		return err
	}
	defer bs.Close()

	c, err := util.GetCodec()
	if err != nil {
		return err
	}

	ordered := bs.SupportsFeature(db.FeatureOrdered)
	fields := benchFields
	if !ordered {
		fields = fields[2:]
	}
	s, err := schema.Open(bs, fields, schema.WithCodec(c))
	if err != nil {
		return err
	}

	fmt.Println("Performance testing tool for dStruct collections")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Engine: %s\n", bs.GetInfo().DbType)
	fmt.Printf("Codec: %s\n", c.Name())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	results := make(map[string]testing.BenchmarkResult)
	for _, b := range benches {
		if shouldSkip(b.name) || b.ordered && !ordered {
			printResult(b.name, testing.BenchmarkResult{}, nil)
			continue
		}

		op, err := b.prepare(s)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", b.name, err)
		}
		timer := gometrics.GetOrRegisterTimer(b.name, timers)
		result := testing.Benchmark(benchmark(b.name, op, timer))
		results[b.name] = result
		printResult(b.name, result, timer)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	if viper.GetBool("metrics") {
		fmt.Println()
		vmetrics.WritePrometheus(os.Stdout, false)
	}
	return nil
}

func benchmark(name string, op func(int) error, timer gometrics.Timer) func(b *testing.B) {
	return func(b *testing.B) {
		var errs atomic.Int64
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := op(counter); err != nil && errs.Add(1) == 1 {
					log.Warningf("(%s) - error: %v", name, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})

		if n := errs.Load(); n > 0 {
			log.Warningf("(%s) - %d operations failed", name, n)
		}
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult, timer gometrics.Timer) {
	if result.NsPerOp() == 0 || timer == nil {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	ps := timer.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns",
		"Engine", "Codec", "Threads", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		nsPerOp := math.Max(float64(result.NsPerOp()), 1)
		ps := gometrics.GetOrRegisterTimer(test, timers).Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", 1.0/(nsPerOp/1e9)),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			viper.GetString("engine"),
			viper.GetString("codec"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
