package dbs

import "github.com/VictoriaMetrics/metrics"

var (
	stmtOK          = metrics.GetOrCreateCounter(`dql_dbs_statements_total{status="ok"}`)
	stmtErr         = metrics.GetOrCreateCounter(`dql_dbs_statements_total{status="err"}`)
	batchCommitted  = metrics.GetOrCreateCounter(`dql_dbs_batches_total{outcome="commit"}`)
	batchCancelled  = metrics.GetOrCreateCounter(`dql_dbs_batches_total{outcome="cancel"}`)
	batchFailed     = metrics.GetOrCreateCounter(`dql_dbs_batches_total{outcome="commit_failed"}`)
	batchReadOnly   = metrics.GetOrCreateCounter(`dql_dbs_batches_total{outcome="readonly"}`)
	executeDuration = metrics.GetOrCreateHistogram(`dql_dbs_execute_duration_seconds`)
)
