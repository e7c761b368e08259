package syncer

import "github.com/prometheus/client_golang/prometheus"

var (
	cyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgersync_sync_cycles_total",
		Help: "Sync cycles by outcome",
	}, []string{"status"})
	transactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgersync_sync_transactions_total",
		Help: "Fetched transactions by ingestion outcome",
	}, []string{"outcome"})
	cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgersync_sync_cycle_duration_seconds",
		Help:    "Wall time of one sync cycle",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(cyclesTotal, transactionsTotal, cycleDuration)
}
