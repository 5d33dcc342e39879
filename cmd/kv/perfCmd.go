package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/lib/dbs"
	"github.com/ValentinKolb/dQL/lib/dql"
	"github.com/ValentinKolb/dQL/lib/iam"
	"github.com/ValentinKolb/dQL/lib/kvs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the datastore",
		PreRunE: processPerfConfig,
		RunE:    runPerf,
	}
	perfKeyPrefix        = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = []string{}
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU used for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, args []string) error {
	if err := util.BindCommandFlags(cmd, args); err != nil {
		return err
	}
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	return nil
}

// benchmark is one perf test. op runs one operation with the counter of its
// goroutine and returns whether the operation conflicted.
type benchmark struct {
	name  string
	setup func(ctx context.Context, ds *dql.Datastore) error
	op    func(ctx context.Context, ds *dql.Datastore, i int) (bool, error)
}

type result struct {
	testing.BenchmarkResult
	conflicts int64
	errors    int64
}

func perfKey(test string, i int) []byte {
	return []byte(fmt.Sprintf("%s/%s/%d", perfKeyPrefix, test, i%perfKeySpread))
}

func put(ctx context.Context, ds *dql.Datastore, key, value []byte) (bool, error) {
	err := runTransaction(ctx, ds, true, func(ctx context.Context, tx *kvs.Transaction) error {
		return tx.Put(ctx, key, value)
	})
	return kvs.IsConflict(err), err
}

func benchmarks() []benchmark {
	large := make([]byte, perfLargeValueSizeKB*1024)
	sess := dbs.NewSession(iam.Root()).WithNS("perf").WithDB("perf")

	return []benchmark{
		{
			name: "put",
			op: func(ctx context.Context, ds *dql.Datastore, i int) (bool, error) {
				return put(ctx, ds, perfKey("put", i), []byte("test"))
			},
		},
		{
			name: "put-large",
			op: func(ctx context.Context, ds *dql.Datastore, i int) (bool, error) {
				return put(ctx, ds, perfKey("put-large", i), large)
			},
		},
		{
			name: "get",
			setup: func(ctx context.Context, ds *dql.Datastore) error {
				for i := 0; i < perfKeySpread; i++ {
					if _, err := put(ctx, ds, perfKey("get", i), []byte("test")); err != nil {
						return err
					}
				}
				return nil
			},
			op: func(ctx context.Context, ds *dql.Datastore, i int) (bool, error) {
				return false, runTransaction(ctx, ds, false, func(ctx context.Context, tx *kvs.Transaction) error {
					_, _, err := tx.Get(ctx, perfKey("get", i))
					return err
				})
			},
		},
		{
			name: "increment",
			op: func(ctx context.Context, ds *dql.Datastore, i int) (bool, error) {
				key := perfKey("increment", i)
				err := runTransaction(ctx, ds, true, func(ctx context.Context, tx *kvs.Transaction) error {
					v, _, err := tx.Get(ctx, key)
					if err != nil {
						return err
					}
					n, _ := strconv.Atoi(string(v))
					return tx.Put(ctx, key, []byte(strconv.Itoa(n+1)))
				})
				return kvs.IsConflict(err), err
			},
		},
		{
			name: "query",
			op: func(ctx context.Context, ds *dql.Datastore, i int) (bool, error) {
				q := fmt.Sprintf("DELETE bench:%d; CREATE bench:%d CONTENT {\"n\":%d}; SELECT * FROM bench:%d", i, i, i, i)
				res, err := ds.Execute(ctx, q, sess, nil)
				if err != nil {
					return false, err
				}
				for _, r := range res {
					if _, err := r.Output(); err != nil {
						return kvs.IsConflict(err), err
					}
				}
				return false, nil
			},
		},
	}
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ds, err := util.OpenDatastore()
	if err != nil {
		return err
	}
	defer ds.Close()
	ctx := context.Background()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Performance testing tool for dQL")
	fmt.Fprintf(out, "\nDatastore: %s (%s)\nThreads: %d\nKeys: %d\n\n", ds.KV().Path(), ds.KV().Backend(), perfNumThreads, perfKeySpread)

	results := make(map[string]result)
	for _, bm := range benchmarks() {
		if shouldSkip(bm.name) {
			results[bm.name] = result{}
			printResult(cmd, bm.name, result{})
			continue
		}
		if bm.setup != nil {
			if err := bm.setup(ctx, ds); err != nil {
				return fmt.Errorf("setup of %s failed: %w", bm.name, err)
			}
		}

		var conflicts, errs atomic.Int64
		var seq atomic.Int64
		res := testing.Benchmark(func(b *testing.B) {
			b.SetParallelism(perfNumThreads)
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := int(seq.Add(1)) * perfKeySpread / max(perfNumThreads, 1)
				for pb.Next() {
					conflict, err := bm.op(ctx, ds, i)
					switch {
					case conflict:
						conflicts.Add(1)
					case err != nil:
						errs.Add(1)
					}
					i++
				}
			})
		})

		r := result{BenchmarkResult: res, conflicts: conflicts.Load(), errors: errs.Load()}
		results[bm.name] = r
		printResult(cmd, bm.name, r)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, ds, results); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nresults written to %s\n", csvPath)
	}
	return nil
}

func shouldSkip(test string) bool {
	for _, s := range perfSkip {
		if strings.TrimSpace(s) == test {
			return true
		}
	}
	return false
}

func rates(r result) (nsPerOp, opsPerSec float64) {
	if r.N == 0 {
		return 0, 0
	}
	nsPerOp = math.Max(float64(r.NsPerOp()), 1)
	return nsPerOp, 1e9 / nsPerOp
}

func printResult(cmd *cobra.Command, test string, r result) {
	if r.N == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%-20sskipped\n", test)
		return
	}
	nsPerOp, opsPerSec := rates(r)
	fmt.Fprintf(cmd.OutOrStdout(), "%-20s%.0fns/op (%s/op)\t%.0f ops/sec\t%d conflicts\t%d errors\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec, r.conflicts, r.errors)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, ds *dql.Datastore, results map[string]result) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Ops", "Conflicts", "Errors", "Skipped",
		"Backend", "Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for test, r := range results {
		nsPerOp, opsPerSec := rates(r)
		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.Itoa(r.N),
			strconv.FormatInt(r.conflicts, 10),
			strconv.FormatInt(r.errors, 10),
			strconv.FormatBool(r.N == 0),
			ds.KV().Backend(),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %w", test, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
