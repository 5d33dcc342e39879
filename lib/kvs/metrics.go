package kvs

import (
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var (
	txOpened    = metrics.GetOrCreateCounter(`dql_kvs_transactions_opened_total`)
	txCommitted = metrics.GetOrCreateCounter(`dql_kvs_transactions_total{outcome="commit"}`)
	txCancelled = metrics.GetOrCreateCounter(`dql_kvs_transactions_total{outcome="cancel"}`)
	txConflicts = metrics.GetOrCreateCounter(`dql_kvs_transactions_total{outcome="conflict"}`)
	txFailed    = metrics.GetOrCreateCounter(`dql_kvs_transactions_total{outcome="error"}`)
	txDuration  = metrics.GetOrCreateHistogram(`dql_kvs_transaction_duration_seconds`)
	lockWait    = metrics.GetOrCreateHistogram(`dql_kvs_lock_wait_seconds`)
)

func observeSince(h *metrics.Histogram, start time.Time) {
	h.Update(time.Since(start).Seconds())
}
