package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the loader.
type Metrics struct {
	FetchRequests *prometheus.CounterVec   // labels: feed={states,cities}, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: feed
	RowsFetched   *prometheus.CounterVec   // labels: feed
	RowsEmitted   *prometheus.CounterVec   // labels: table={states,cities}

	// Persistence metrics.
	RowsPersisted *prometheus.CounterVec // labels: sink={csv,kafka,sqlite}
	SinkErrors    *prometheus.CounterVec // labels: sink

	LastSuccess *prometheus.GaugeVec // labels: operation; unix seconds
}

// NewMetrics creates and registers all loader metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := NewMetricsForTesting()
	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.RowsFetched,
		m.RowsEmitted,
		m.RowsPersisted,
		m.SinkErrors,
		m.LastSuccess,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covidbr_etl",
			Name:      "fetch_requests_total",
			Help:      "Upstream feed downloads by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "covidbr_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Time to download and parse an upstream feed.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"feed"}),
		RowsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covidbr_etl",
			Name:      "rows_fetched_total",
			Help:      "Rows parsed from upstream feeds.",
		}, []string{"feed"}),
		RowsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covidbr_etl",
			Name:      "rows_emitted_total",
			Help:      "Rows remaining after shaping and filtering.",
		}, []string{"table"}),
		RowsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covidbr_etl",
			Name:      "rows_persisted_total",
			Help:      "Rows written to each configured sink.",
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covidbr_etl",
			Name:      "sink_errors_total",
			Help:      "Failed writes by sink.",
		}, []string{"sink"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "covidbr_etl",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful load by operation.",
		}, []string{"operation"}),
	}
}
