package kv

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/lib/kvs"
	"github.com/ValentinKolb/dQL/lib/store"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:     "get [key]",
		Short:   "Gets the value for a key",
		Args:    cobra.ExactArgs(1),
		PreRunE: util.BindCommandFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTransaction(false, func(ctx context.Context, tx *kvs.Transaction) error {
				value, ok, err := tx.Get(ctx, []byte(args[0]))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("key %q not found", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(value))
				return nil
			})
		},
	}
	putCmd = &cobra.Command{
		Use:     "put [key] [value]",
		Short:   "Sets the value for a key",
		Args:    cobra.ExactArgs(2),
		PreRunE: util.BindCommandFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTransaction(true, func(ctx context.Context, tx *kvs.Transaction) error {
				return tx.Put(ctx, []byte(args[0]), []byte(args[1]))
			})
		},
	}
	delCmd = &cobra.Command{
		Use:     "del [key]",
		Short:   "Deletes a key",
		Args:    cobra.ExactArgs(1),
		PreRunE: util.BindCommandFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTransaction(true, func(ctx context.Context, tx *kvs.Transaction) error {
				return tx.Del(ctx, []byte(args[0]))
			})
		},
	}
	scanCmd = &cobra.Command{
		Use:     "scan [prefix]",
		Short:   "Lists all keys with a prefix and their values",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: util.BindCommandFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return withTransaction(false, func(ctx context.Context, tx *kvs.Transaction) error {
				it, err := tx.Scan(ctx, store.PrefixRange(prefix))
				if err != nil {
					return err
				}
				defer it.Close()
				for it.Next() {
					fmt.Fprintf(cmd.OutOrStdout(), "%q\t%s\n", it.Key(), it.Value())
				}
				return it.Err()
			})
		},
	}
)
