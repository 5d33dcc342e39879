package util

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ValentinKolb/dQL/lib/dql"
	"github.com/ValentinKolb/dQL/lib/iam"
	"github.com/ValentinKolb/dQL/lib/kvs"
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
	var lines []string
	var line strings.Builder

	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > Wrap {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// InitConfig loads .env files and makes every flag settable as DQL_<FLAG>.
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("dql")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper. It has the signature
// of a cobra run hook.
func BindCommandFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupDatastoreFlags adds the flags read by OpenDatastore.
func SetupDatastoreFlags(cmd *cobra.Command) {
	key := "path"
	cmd.PersistentFlags().String(key, "memory", WrapString("Connection string of the datastore: memory, file://{path} or raft://{address}?{params}"))

	key = "lock-ttl"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Lease of the serialization lock on the raft backend (0 for the default)"))

	key = "start-timeout"
	cmd.PersistentFlags().Duration(key, 0, WrapString("How long to wait for the raft replica to become ready (0 for the default)"))

	key = "stop-on-error"
	cmd.PersistentFlags().Bool(key, false, WrapString("Cancel a batch at its first failing statement"))

	key = "lock"
	cmd.PersistentFlags().Bool(key, false, WrapString("Run batches with the serialization lock held"))
}

// OpenDatastore opens the datastore configured by the flags of
// SetupDatastoreFlags.
func OpenDatastore() (*dql.Datastore, error) {
	var kvOpts []kvs.Option
	if ttl := viper.GetDuration("lock-ttl"); ttl > 0 {
		kvOpts = append(kvOpts, kvs.WithLockTTL(ttl))
	}
	if d := viper.GetDuration("start-timeout"); d > 0 {
		kvOpts = append(kvOpts, kvs.WithStartTimeout(d))
	}

	return dql.New(viper.GetString("path"),
		dql.WithStopOnError(viper.GetBool("stop-on-error")),
		dql.WithLock(viper.GetBool("lock")),
		dql.WithKVOptions(kvOpts...),
	)
}

// ParseAuth converts the --auth flag (root, ns, db or none) into an identity
// bound to ns and db.
func ParseAuth(level, ns, db string) (*iam.Auth, error) {
	switch strings.ToLower(level) {
	case "root", "kv":
		return iam.Root(), nil
	case "ns":
		if ns == "" {
			return nil, fmt.Errorf("auth level ns requires a namespace")
		}
		return iam.Namespace(ns), nil
	case "db":
		if ns == "" || db == "" {
			return nil, fmt.Errorf("auth level db requires a namespace and a database")
		}
		return iam.Database(ns, db), nil
	case "none", "":
		return iam.None(), nil
	default:
		return nil, fmt.Errorf("invalid auth level %q (expected one of: root, ns, db, none)", level)
	}
}

// WriteJSON writes v as JSON followed by a newline.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
