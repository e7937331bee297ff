package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dStruct/cmd/demo"
	"github.com/ValentinKolb/dStruct/cmd/inspect"
	"github.com/ValentinKolb/dStruct/cmd/lock"
	"github.com/ValentinKolb/dStruct/cmd/perf"
	"github.com/ValentinKolb/dStruct/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dstruct",
		Short: "typed collections on an ordered key-value store",
		Long: fmt.Sprintf(`dStruct (v%s)

Typed lists, deques, maps and scalars laid out on a single ordered
byte key-value store. The commands below work on in-memory engines
that are loaded from and saved to snapshot files.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dStruct",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dStruct v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(demo.DemoCmd)
	RootCmd.AddCommand(inspect.InspectCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("Level at which logs will be output (debug, info, warn, error)"))
	util.SetupEngineFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
