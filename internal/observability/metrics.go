package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	PagesFetched   prometheus.Counter
	PageRetries    prometheus.Counter
	RecordsSaved   prometheus.Counter
	RecordsDropped prometheus.Counter
	RunsInFlight   prometheus.Gauge

	PageFetchDuration prometheus.Histogram
	BulkWriteDuration prometheus.Histogram

	// PIN resolution metrics.
	PinLookups      *prometheus.CounterVec // labels: outcome={resolved,fallback,miss,error}
	PinCacheLookups *prometheus.CounterVec // labels: tier={local,redis}, result={hit,miss,error}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PagesFetched,
		m.PageRetries,
		m.RecordsSaved,
		m.RecordsDropped,
		m.RunsInFlight,
		m.PageFetchDuration,
		m.BulkWriteDuration,
		m.PinLookups,
		m.PinCacheLookups,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groundwater_etl",
			Name:      "pages_fetched_total",
			Help:      "Total station-data pages fetched from the upstream service.",
		}),
		PageRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groundwater_etl",
			Name:      "page_retries_total",
			Help:      "Total page fetch retries after transient upstream failures.",
		}),
		RecordsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groundwater_etl",
			Name:      "records_saved_total",
			Help:      "Total records inserted or updated in the document store.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groundwater_etl",
			Name:      "records_dropped_total",
			Help:      "Total upstream features dropped during normalization.",
		}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "groundwater_etl",
			Name:      "runs_in_flight",
			Help:      "Number of ingestion runs currently executing.",
		}),
		PageFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "groundwater_etl",
			Name:      "page_fetch_duration_seconds",
			Help:      "Duration of one upstream page query.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		BulkWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "groundwater_etl",
			Name:      "bulk_write_duration_seconds",
			Help:      "Duration of one unordered bulk upsert batch.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		PinLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groundwater_etl",
			Name:      "pin_lookups_total",
			Help:      "PIN code resolutions by outcome.",
		}, []string{"outcome"}),
		PinCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groundwater_etl",
			Name:      "pin_cache_lookups_total",
			Help:      "PIN cache lookups by tier and result.",
		}, []string{"tier", "result"}),
	}
}
