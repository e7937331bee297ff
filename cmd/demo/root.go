package demo

import (
	"fmt"

	"github.com/ValentinKolb/dStruct/cmd/util"
	"github.com/ValentinKolb/dStruct/lib/logging"
	"github.com/ValentinKolb/dStruct/lib/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Fields of the demo schema
var Fields = []schema.Field{
	schema.ListField("primes"),
	schema.DefaultField("the_field"),
	schema.DequeField("queue"),
	schema.MapField("scores"),
	schema.DefaultValueField("primes_per_run", 5),
}

const queueLen = 3

var (
	log = logging.GetLogger(logging.CLI)

	// DemoCmd represents the demo command
	DemoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Run the primes scenario on a snapshot",
		Long: `Open (or create) the snapshot, append the next primes to the "primes" list,
count the runs in "the_field", keep the last runs in the "queue" deque and
update the "scores" map. The result is printed and saved back.`,
		PreRunE: util.BindCommandFlags,
		RunE:    run,
	}
)

func init() {
	key := "file"
	DemoCmd.Flags().String(key, "dstruct.snap", util.WrapString("Snapshot file to work on"))
	key = "count"
	DemoCmd.Flags().Int(key, 5, util.WrapString("Number of primes to add per run. The value is stored and used by later runs without this flag"))
}

func run(cmd *cobra.Command, _ []string) error {
	bs, err := util.GetEngine(false)
	if err != nil {
		return err
	}
	defer bs.Close()

	c, err := util.GetCodec()
	if err != nil {
		return err
	}

	path := viper.GetString("file")
	found, err := util.LoadSnapshot(bs, path)
	if err != nil {
		return err
	}
	if !found {
		log.Infof("snapshot %s does not exist, starting empty", path)
	}

	s, err := schema.Open(bs, Fields, schema.WithCodec(c))
	if err != nil {
		return err
	}

	if err := s.Synchronized("primes", func() error { return step(cmd, s) }); err != nil {
		return err
	}
	if err := printState(s); err != nil {
		return err
	}
	return util.SaveSnapshot(bs, path)
}

// step performs one run of the scenario
func step(cmd *cobra.Command, s *schema.Schema) error {
	runs, err := schema.Default[uint8](s, "the_field")
	if err != nil {
		return err
	}
	if err := runs.Update(func(n uint8) uint8 { return n + 1 }); err != nil {
		return err
	}
	run, err := runs.Get()
	if err != nil {
		return err
	}

	perRun, err := schema.DefaultValue[int](s, "primes_per_run")
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("count") {
		if err := perRun.Set(viper.GetInt("count")); err != nil {
			return err
		}
	}
	n, err := perRun.Get()
	if err != nil {
		return err
	}

	primes, err := schema.List[uint32](s, "primes")
	if err != nil {
		return err
	}
	last := uint32(1)
	if l := primes.Len(); l > 0 {
		if last, _, err = primes.Get(l - 1); err != nil {
			return err
		}
	}
	if err := primes.Extend(nextPrimes(last, n)); err != nil {
		return err
	}

	queue, err := schema.Deque[string](s, "queue")
	if err != nil {
		return err
	}
	if err := queue.PushBack(fmt.Sprintf("run-%d", run)); err != nil {
		return err
	}
	for queue.Len() > queueLen {
		if _, _, err := queue.PopFront(); err != nil {
			return err
		}
	}

	scores, err := schema.Map[string, int](s, "scores")
	if err != nil {
		return err
	}
	e, err := scores.Entry("runs")
	if err != nil {
		return err
	}
	if e, err = e.AndModify(func(v int) int { return v + 1 }); err != nil {
		return err
	}
	if _, err := e.OrInsert(1); err != nil {
		return err
	}
	_, _, err = scores.Insert("primes", int(primes.Len()))
	return err
}

func printState(s *schema.Schema) error {
	runs, err := schema.Default[uint8](s, "the_field")
	if err != nil {
		return err
	}
	run, err := runs.Get()
	if err != nil {
		return err
	}
	fmt.Printf("the_field: %d\n", run)

	primes, err := schema.List[uint32](s, "primes")
	if err != nil {
		return err
	}
	all, err := primes.Iter().Collect()
	if err != nil {
		return err
	}
	fmt.Printf("primes (%d): %v\n", len(all), all)

	queue, err := schema.Deque[string](s, "queue")
	if err != nil {
		return err
	}
	last, err := queue.Iter().Collect()
	if err != nil {
		return err
	}
	fmt.Printf("queue: %v\n", last)

	scores, err := schema.Map[string, int](s, "scores")
	if err != nil {
		return err
	}
	fmt.Println("scores:")
	return scores.ForEach(func(k string, v int) bool {
		fmt.Printf("  %-10s%d\n", k, v)
		return true
	})
}

// nextPrimes returns the n primes following after
func nextPrimes(after uint32, n int) []uint32 {
	out := make([]uint32, 0, n)
	for c := after + 1; len(out) < n && c > after; c++ {
		if isPrime(c) {
			out = append(out, c)
		}
	}
	return out
}

func isPrime(n uint32) bool {
	if n < 2 {
		return false
	}
	for d := uint32(2); uint64(d)*uint64(d) <= uint64(n); d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}
