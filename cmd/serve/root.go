package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/server"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	log = logger.GetLogger("cli")

	// ServeCmd keeps a datastore open until the process is interrupted
	ServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run a datastore replica",
		Long: `Open the datastore and keep it running until SIGINT or SIGTERM. With a raft://
path this runs a replica of the cluster, which other replicas need to reach a
quorum. With --listen the datastore also answers queries over HTTP
(POST /sql). The configuration can be set via command line flags or environment
variables of the form DQL_<flag> (e.g. DQL_PATH=raft://localhost:63001).`,
		PreRunE: util.BindCommandFlags,
		RunE:    run,
	}
)

func init() {
	key := "info-interval"
	ServeCmd.Flags().Duration(key, time.Minute, util.WrapString("How often to log information about the storage engine (0 disables it)"))

	key = "listen"
	ServeCmd.Flags().String(key, "", util.WrapString("Address of the HTTP query endpoint, e.g. 0.0.0.0:8000 (empty disables it)"))

	key = "timeout"
	ServeCmd.Flags().Duration(key, 0, util.WrapString("Timeout of a single HTTP query (0 for no limit)"))

	key = "auth"
	ServeCmd.Flags().String(key, "root", util.WrapString("Level HTTP queries are authenticated for (root, ns, db, none). ns and db are bound to the --auth-ns and --auth-db flags"))

	key = "auth-ns"
	ServeCmd.Flags().String(key, "", util.WrapString("Namespace of the ns and db auth levels"))

	key = "auth-db"
	ServeCmd.Flags().String(key, "", util.WrapString("Database of the db auth level"))
}

func run(cmd *cobra.Command, _ []string) error {
	ds, err := util.OpenDatastore()
	if err != nil {
		return err
	}
	defer ds.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "serving %s datastore %s\n", ds.KV().Backend(), ds.KV().Path())

	errCh := make(chan error, 1)
	if listen := viper.GetString("listen"); listen != "" {
		auth, err := util.ParseAuth(viper.GetString("auth"), viper.GetString("auth-ns"), viper.GetString("auth-db"))
		if err != nil {
			return err
		}
		config := common.ServerConfig{
			Endpoint:    listen,
			Timeout:     viper.GetDuration("timeout"),
			LogRequests: viper.GetString("log-level") == "debug",
		}
		log.Infof("%s", config.String())
		go func() { errCh <- server.NewServer(ds, config, auth).Serve(ctx) }()
	}

	var tick <-chan time.Time
	if interval := viper.GetDuration("info-interval"); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Infof("shutting down")
			if viper.GetString("listen") != "" {
				return <-errCh
			}
			return nil
		case err := <-errCh:
			return err
		case <-tick:
			info, err := ds.KV().Info(ctx)
			if err != nil {
				log.Warningf("failed to read engine info: %v", err)
				continue
			}
			log.Infof("engine info: %v", info)
		}
	}
}
