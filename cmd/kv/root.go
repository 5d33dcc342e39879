package kv

import (
	"context"
	"os"
	"os/signal"

	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/lib/dql"
	"github.com/ValentinKolb/dQL/lib/kvs"
	"github.com/spf13/cobra"
)

var (
	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:   "kv",
		Short: "Perform raw key-value operations",
		Long: `Perform raw key-value operations. Every command runs in its own transaction
and bypasses the query layer, keys are used as given.`,
	}
)

func init() {
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(scanCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// withTransaction opens the datastore, runs fn in one transaction and
// commits it if write is set.
func withTransaction(write bool, fn func(ctx context.Context, tx *kvs.Transaction) error) error {
	ds, err := util.OpenDatastore()
	if err != nil {
		return err
	}
	defer ds.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return runTransaction(ctx, ds, write, fn)
}

func runTransaction(ctx context.Context, ds *dql.Datastore, write bool, fn func(ctx context.Context, tx *kvs.Transaction) error) error {
	tx, err := ds.KV().Transaction(ctx, write, false)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Cancel()
		return err
	}
	if !write {
		return tx.Cancel()
	}
	return tx.Commit(ctx)
}
