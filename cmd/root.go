package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ValentinKolb/dQL/cmd/kv"
	"github.com/ValentinKolb/dQL/cmd/lock"
	"github.com/ValentinKolb/dQL/cmd/serve"
	"github.com/ValentinKolb/dQL/cmd/sql"
	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/lib/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dql",
		Short: "transactional document datastore",
		Long: fmt.Sprintf(`dQL (v%s)

A transactional datastore with a small query language, running on an
in-memory, embedded file or raft replicated key-value backend.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if viper.GetBool("metrics") {
				metrics.WritePrometheus(cmd.ErrOrStderr(), false)
			}
			return nil
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dQL",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dQL v%s\n", Version)
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Print information about the storage engine as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := util.OpenDatastore()
			if err != nil {
				return err
			}
			defer ds.Close()

			info, err := ds.KV().Info(context.Background())
			if err != nil {
				return err
			}
			return util.WriteJSON(cmd.OutOrStdout(), info, true)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	RootCmd.AddCommand(sql.SQLCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(versionCmd)

	util.SetupDatastoreFlags(RootCmd)

	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "metrics"
	RootCmd.PersistentFlags().Bool(key, false, util.WrapString("Write all metrics in Prometheus text format to stderr when the command finishes"))
}

// setup binds the flags and configures logging before every command
func setup(cmd *cobra.Command, args []string) error {
	if err := util.BindCommandFlags(cmd, args); err != nil {
		return err
	}
	return common.InitLoggers(viper.GetString("log-level"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
