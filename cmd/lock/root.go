package lock

import (
	"encoding/hex"
	"fmt"

	"github.com/ValentinKolb/dStruct/cmd/util"
	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/lockmgr"
	"github.com/ValentinKolb/dStruct/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	snapshot db.ByteStore
	lockMgr  lockmgr.ILockManager

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:   "lock",
		Short: "Acquire and release locks stored in a snapshot",
		Long: `Locks live in the reserved prefix of the snapshot, next to the data of the
collections. A lock taken here blocks Synchronized sections of every program
that opens the snapshot until it is released.`,
		PersistentPreRunE:  setupLockMgr,
		PersistentPostRunE: saveLockMgr,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [key]",
		Short: "Acquire a lock",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [key] [ownerID]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the key and owner ID. The owner ID is the hex string returned by the acquire command.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRelease,
	}
)

func init() {
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)

	LockCommands.PersistentFlags().String("file", "dstruct.snap", util.WrapString("Snapshot file holding the locks"))
}

// setupLockMgr loads the snapshot and creates the lock manager on it
func setupLockMgr(cmd *cobra.Command, args []string) error {
	if err := util.BindCommandFlags(cmd, args); err != nil {
		return err
	}

	bs, err := util.GetEngine(false)
	if err != nil {
		return err
	}
	if _, err := util.LoadSnapshot(bs, viper.GetString("file")); err != nil {
		return err
	}

	snapshot = bs
	lockMgr = lockmgr.NewLockManager(store.NewStore(bs))
	return nil
}

// saveLockMgr writes the lock records back to the snapshot
func saveLockMgr(_ *cobra.Command, _ []string) error {
	defer snapshot.Close()
	return util.SaveSnapshot(snapshot, viper.GetString("file"))
}

// runAcquire handles the acquire lock command
func runAcquire(_ *cobra.Command, args []string) error {
	key := args[0]

	acquired, ownerID, err := lockMgr.AcquireLock(key)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %v", err)
	}

	if !acquired {
		fmt.Printf("acquired=false\n")
		return nil
	}

	fmt.Printf("acquired=true, ownerId=%s\n", hex.EncodeToString(ownerID))
	return nil
}

// runRelease handles the release lock command
func runRelease(_ *cobra.Command, args []string) error {
	key := args[0]

	ownerID, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("invalid owner ID format: %v", err)
	}

	released, err := lockMgr.ReleaseLock(key, ownerID)
	if err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}

	fmt.Printf("released=%v\n", released)
	return nil
}
