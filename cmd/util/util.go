package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ValentinKolb/dStruct/lib/codec"
	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/db/engines/maple"
	"github.com/ValentinKolb/dStruct/lib/db/engines/oak"
	"github.com/ValentinKolb/dStruct/lib/db/metered"
	"github.com/ValentinKolb/dStruct/lib/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupEngineFlags adds the flags that select and tune the storage engine
func SetupEngineFlags(cmd *cobra.Command) {
	key := "engine"
	cmd.PersistentFlags().String(key, "oak", WrapString("Storage engine to use (oak, maple). Lists and deques need the ordered oak engine"))

	key = "codec"
	cmd.PersistentFlags().String(key, "gob", WrapString("Value codec to use (gob, json). Snapshots must be read with the codec they were written with"))

	key = "oak-degree"
	cmd.PersistentFlags().Int(key, oak.DefaultOptions().Degree, WrapString("B-tree degree of the oak engine"))

	key = "maple-shards"
	cmd.PersistentFlags().Int(key, maple.DefaultOptions().NumShards, WrapString("Number of shards of the maple engine"))
}

// InitConfig loads .env files and sets up viper to read DSTRUCT_* variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("dstruct")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper and applies the log
// level. It is meant to be used as PreRunE.
func BindCommandFlags(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return logging.SetLevel(viper.GetString("log-level"))
}

// GetEngine creates the configured storage engine. With instrument set the
// engine is wrapped into a metered.Store registered in the global metrics set.
func GetEngine(instrument bool) (db.ByteStore, error) {
	var bs db.ByteStore
	switch name := viper.GetString("engine"); name {
	case string(db.ImplOak):
		bs = oak.NewOakDB(&oak.DBOptions{Degree: viper.GetInt("oak-degree")})
	case string(db.ImplMaple):
		bs = maple.NewMapleDB(&maple.DBOptions{NumShards: viper.GetInt("maple-shards")})
	default:
		return nil, fmt.Errorf("invalid engine %s", name)
	}
	if instrument {
		return metered.New(bs, nil), nil
	}
	return bs, nil
}

// GetCodec returns the configured value codec
func GetCodec() (codec.ValueCodec, error) {
	return codec.ByName(viper.GetString("codec"))
}

// LoadSnapshot fills bs from the snapshot at path. A missing file is not an
// error; it reports false.
func LoadSnapshot(bs db.ByteStore, path string) (bool, error) {
	p, ok := db.AsPersistent(bs)
	if !ok {
		return false, fmt.Errorf("engine %s cannot load snapshots", bs.GetInfo().DbType)
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	defer f.Close()

	if err := p.Load(f); err != nil {
		return false, fmt.Errorf("failed to load snapshot %s: %w", path, err)
	}
	return true, nil
}

// SaveSnapshot writes bs to path, replacing the file only after the
// snapshot was written completely.
func SaveSnapshot(bs db.ByteStore, path string) error {
	p, ok := db.AsPersistent(bs)
	if !ok {
		return fmt.Errorf("engine %s cannot save snapshots", bs.GetInfo().DbType)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := p.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to save snapshot %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
