package source

import "github.com/prometheus/client_golang/prometheus"

var (
	pagesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgersync_source_pages_fetched_total",
		Help: "Pages requested from the upstream transaction source",
	})
	ceilingHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgersync_source_page_ceiling_hits_total",
		Help: "Fetches stopped by the page ceiling",
	})
	fallbacksUsed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgersync_source_fallbacks_total",
		Help: "Fetches served from the sample data set",
	})
)

func init() {
	prometheus.MustRegister(pagesFetched, ceilingHits, fallbacksUsed)
}
