package lock

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"

	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:   "lock",
		Short: "Perform lock operations",
		Long: `Acquire and release named locks of the datastore. Locks of the memory and
file backends only live as long as the process, on the raft backend they are
leases held by the cluster.`,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:     "acquire [key]",
		Short:   "Acquire a lock",
		Args:    cobra.ExactArgs(1),
		PreRunE: util.BindCommandFlags,
		RunE:    runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:     "release [key] [ownerID]",
		Short:   "Release a previously acquired lock",
		Long:    "Release a lock using the key and owner ID. The owner ID is the hex string returned by the acquire command.",
		Args:    cobra.ExactArgs(2),
		PreRunE: util.BindCommandFlags,
		RunE:    runRelease,
	}
)

func init() {
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)

	acquireCmd.Flags().Duration("wait", 0, util.WrapString("How long to wait for the lock, 0 tries once"))
}

func runAcquire(cmd *cobra.Command, args []string) error {
	ds, err := util.OpenDatastore()
	if err != nil {
		return err
	}
	defer ds.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	locks := ds.KV().Locks()
	var ownerID []byte
	if wait := viper.GetDuration("wait"); wait > 0 {
		ctx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		if ownerID, err = locks.AcquireLock(ctx, args[0]); err != nil {
			return err
		}
	} else {
		acquired, id, err := locks.TryAcquireLock(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !acquired {
			fmt.Fprintln(cmd.OutOrStdout(), "acquired=false")
			return nil
		}
		ownerID = id
	}

	fmt.Fprintf(cmd.OutOrStdout(), "acquired=true, ownerId=%s\n", hex.EncodeToString(ownerID))
	return nil
}

func runRelease(cmd *cobra.Command, args []string) error {
	ownerID, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("invalid owner ID format: %w", err)
	}

	ds, err := util.OpenDatastore()
	if err != nil {
		return err
	}
	defer ds.Close()

	released, err := ds.KV().Locks().ReleaseLock(context.Background(), args[0], ownerID)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "released=%t\n", released)
	return nil
}
