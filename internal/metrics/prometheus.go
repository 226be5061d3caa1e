package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsdash_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route", "status"},
	)

	RefreshRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdash_refresh_runs_total",
			Help: "Refresh cycles by module and outcome",
		},
		[]string{"module", "outcome"},
	)

	IngestedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdash_ingested_records_total",
			Help: "Records written by refresh cycles",
		},
		[]string{"module", "outcome"},
	)

	UpstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdash_upstream_calls_total",
			Help: "External API calls by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	StoreFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdash_store_fallbacks_total",
			Help: "Store operations served from memory after a database failure",
		},
		[]string{"operation"},
	)

	StoreDemoMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsdash_store_demo_mode",
			Help: "1 when the store is serving from memory",
		},
	)

	KeywordAlerts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsdash_keyword_alerts",
			Help: "Keywords currently in position alert",
		},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdash_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(RefreshRuns)
		prometheus.MustRegister(IngestedRecords)
		prometheus.MustRegister(UpstreamCalls)
		prometheus.MustRegister(StoreFallbacks)
		prometheus.MustRegister(StoreDemoMode)
		prometheus.MustRegister(KeywordAlerts)
		prometheus.MustRegister(CacheLookups)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome maps an error to the label value used by the counters above.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
