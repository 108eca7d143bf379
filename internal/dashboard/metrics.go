package dashboard

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ontodb/ontosync/internal/pipeline"
)

// Metrics collects Prometheus metrics for the sync engine.
type Metrics struct {
	registry *prometheus.Registry

	// Counters
	syncsTotal     *prometheus.CounterVec
	termsFetched   prometheus.Counter
	termsProcessed *prometheus.CounterVec
	edgesProcessed *prometheus.CounterVec

	// Histograms
	syncDuration prometheus.Histogram

	// Gauges
	storedTerms      prometheus.Gauge
	storedRelations  prometheus.Gauge
	connectedClients prometheus.Gauge
}

// NewMetrics creates a collector backed by its own registry, so multiple
// servers can coexist in one process.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		syncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ontosync_syncs_total",
			Help: "Total number of completed sync runs by final status",
		}, []string{"status"}),

		termsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ontosync_terms_fetched_total",
			Help: "Total number of terms fetched from the source",
		}),

		termsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ontosync_terms_processed_total",
			Help: "Total number of terms processed by outcome",
		}, []string{"outcome"}),

		edgesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ontosync_relationships_processed_total",
			Help: "Total number of hierarchy relationships processed by outcome",
		}, []string{"outcome"}),

		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ontosync_sync_duration_seconds",
			Help:    "Wall time of sync runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4m
		}),

		storedTerms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontosync_stored_terms",
			Help: "Number of terms currently in the store",
		}),

		storedRelations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontosync_stored_relationships",
			Help: "Number of hierarchy relationships currently in the store",
		}),

		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontosync_dashboard_clients",
			Help: "Number of connected WebSocket clients",
		}),
	}

	registry.MustRegister(
		m.syncsTotal,
		m.termsFetched,
		m.termsProcessed,
		m.edgesProcessed,
		m.syncDuration,
		m.storedTerms,
		m.storedRelations,
		m.connectedClients,
	)

	return m
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records counters for a completed sync run.
func (m *Metrics) ObserveRun(res *pipeline.Result) {
	m.syncsTotal.WithLabelValues(res.Status).Inc()
	m.termsFetched.Add(float64(res.TermsFetched))
	m.termsProcessed.WithLabelValues("inserted").Add(float64(res.TermsInserted))
	m.termsProcessed.WithLabelValues("updated").Add(float64(res.TermsUpdated))
	m.termsProcessed.WithLabelValues("unchanged").Add(float64(res.TermsUnchanged))
	m.termsProcessed.WithLabelValues("skipped").Add(float64(res.TermsSkipped))
	m.edgesProcessed.WithLabelValues("inserted").Add(float64(res.RelationsInserted))
	m.edgesProcessed.WithLabelValues("skipped").Add(float64(res.RelationsSkipped))
	m.syncDuration.Observe(res.Duration.Seconds())
}

// SetStored updates the stored row gauges.
func (m *Metrics) SetStored(terms, relationships int) {
	m.storedTerms.Set(float64(terms))
	m.storedRelations.Set(float64(relationships))
}

func (m *Metrics) setClients(n int) {
	m.connectedClients.Set(float64(n))
}
