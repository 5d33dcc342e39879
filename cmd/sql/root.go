package sql

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/lib/dbs"
	"github.com/ValentinKolb/dQL/rpc/client"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// SQLCmd executes a query and prints the responses as JSON
	SQLCmd = &cobra.Command{
		Use:   "sql [query]",
		Short: "Execute a query",
		Long: `Execute a query against the datastore and print one JSON response per statement.
The query is read from stdin when no argument is given. With --endpoint the
query is sent to a running "dql serve --listen" instead of opening the datastore.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: util.BindCommandFlags,
		RunE:    run,
	}
	sqlVars map[string]string
)

func init() {
	key := "ns"
	SQLCmd.Flags().String(key, "", util.WrapString("Namespace selected at the start of the query"))

	key = "db"
	SQLCmd.Flags().String(key, "", util.WrapString("Database selected at the start of the query"))

	key = "auth"
	SQLCmd.Flags().String(key, "root", util.WrapString("Level the query is authenticated for (root, ns, db, none). ns and db are bound to the --ns and --db flags"))

	key = "pretty"
	SQLCmd.Flags().Bool(key, false, util.WrapString("Indent the JSON output"))

	key = "endpoint"
	SQLCmd.Flags().StringSlice(key, nil, util.WrapString("Send the query to these servers (round robin) instead of opening the datastore"))

	key = "timeout"
	SQLCmd.Flags().Duration(key, 10*time.Second, util.WrapString("Timeout of a request to a server"))

	key = "retries"
	SQLCmd.Flags().Int(key, 3, util.WrapString("Attempts per request when a server cannot be reached"))

	SQLCmd.Flags().StringToStringVar(&sqlVars, "var", nil, util.WrapString("Query parameter as name=value, values are decoded as JSON if possible (repeatable)"))
}

func run(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) == 1 {
		text = args[0]
	} else {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read query: %w", err)
		}
		text = string(b)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ns, db := viper.GetString("ns"), viper.GetString("db")
	pretty := viper.GetBool("pretty")

	if endpoints := viper.GetStringSlice("endpoint"); len(endpoints) > 0 {
		c, err := client.NewClient(common.ClientConfig{
			Endpoints:  endpoints,
			Timeout:    viper.GetDuration("timeout"),
			RetryCount: viper.GetInt("retries"),
		})
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.Query(ctx, text, ns, db, sqlVars)
		if err != nil {
			return err
		}
		return util.WriteJSON(cmd.OutOrStdout(), res, pretty)
	}

	auth, err := util.ParseAuth(viper.GetString("auth"), ns, db)
	if err != nil {
		return err
	}
	sess := dbs.NewSession(auth).WithNS(ns).WithDB(db).WithOrigin("", "", "cli")

	ds, err := util.OpenDatastore()
	if err != nil {
		return err
	}
	defer ds.Close()

	res, err := ds.Execute(ctx, text, sess, dbs.ParseVariables(sqlVars))
	if err != nil {
		return err
	}
	return util.WriteJSON(cmd.OutOrStdout(), res, pretty)
}
