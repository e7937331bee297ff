package inspect

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/ValentinKolb/dStruct/cmd/util"
	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/keys"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// InspectCmd represents the inspect command
var InspectCmd = &cobra.Command{
	Use:     "inspect",
	Short:   "Print the layout and statistics of a snapshot",
	Long:    "Load a snapshot and print the engine info as JSON. With --keys every entry is listed with its prefix, index or key bytes and value size.",
	PreRunE: util.BindCommandFlags,
	RunE:    run,
}

func init() {
	key := "file"
	InspectCmd.Flags().String(key, "dstruct.snap", util.WrapString("Snapshot file to inspect"))
	key = "keys"
	InspectCmd.Flags().Bool(key, false, util.WrapString("List every entry"))
}

func run(_ *cobra.Command, _ []string) error {
	bs, err := util.GetEngine(false)
	if err != nil {
		return err
	}
	defer bs.Close()

	path := viper.GetString("file")
	found, err := util.LoadSnapshot(bs, path)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("snapshot %s does not exist", path)
	}

	if err := json.MarshalWrite(os.Stdout, bs.GetInfo(), jsontext.WithIndent("  ")); err != nil {
		return err
	}
	fmt.Println()

	if viper.GetBool("keys") {
		return listEntries(bs)
	}
	return nil
}

func listEntries(bs db.ByteStore) error {
	r, ok := db.AsRanged(bs)
	if !ok {
		return fmt.Errorf("engine %s cannot list entries, use --engine oak", bs.GetInfo().DbType)
	}

	fmt.Printf("\n%-8s%-24s%s\n", "prefix", "key", "value bytes")
	return r.Range(nil, nil, func(k, v []byte) bool {
		if len(k) == 0 {
			fmt.Printf("%-8s%-24s%d\n", "-", "(empty)", len(v))
			return true
		}
		p := keys.Prefix(k[0])
		switch {
		case len(k) == 1:
			fmt.Printf("%-8d%-24s%d\n", p, "(scalar)", len(v))
		case len(k) == keys.IndexLen:
			if i, ok := keys.ParseIndex(p, k); ok {
				fmt.Printf("%-8d%-24s%d\n", p, fmt.Sprintf("#%d", i), len(v))
				break
			}
			fallthrough
		default:
			fmt.Printf("%-8d%-24s%d\n", p, hex.EncodeToString(k[1:]), len(v))
		}
		return true
	})
}
