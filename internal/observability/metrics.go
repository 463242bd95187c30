// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Fetch metrics
	PagesFetched        prometheus.Counter
	FetchRetries        *prometheus.CounterVec
	TransfersScanned    prometheus.Counter
	ProviderCallLatency *prometheus.HistogramVec

	// Discovery metrics
	RunsTotal         *prometheus.CounterVec
	WalletsDiscovered prometheus.Counter
	Classifications   *prometheus.CounterVec
	RunDuration       prometheus.Histogram

	// Enrichment metrics
	PriceLookups      *prometheus.CounterVec
	InvestmentsPaired prometheus.Counter
	GasCostsAnnotated prometheus.Counter

	// Database metrics
	DBQueryErrors *prometheus.CounterVec

	// Live watch metrics
	WSMessages   prometheus.Counter
	WSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "eth_wallet_tracker"
	}

	return &Metrics{
		// Fetch metrics
		PagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "pages_total",
			Help:      "Total number of transfer pages fetched",
		}),
		FetchRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Total number of fetch retries by reason",
		}, []string{"reason"}),
		TransfersScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "transfers_scanned_total",
			Help:      "Total number of transfer events scanned",
		}),
		ProviderCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Provider API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		// Discovery metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "runs_total",
			Help:      "Total number of discovery runs by status",
		}, []string{"status"}),
		WalletsDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "wallets_total",
			Help:      "Total number of early wallets discovered",
		}),
		Classifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "classifications_total",
			Help:      "Total number of wallet classifications by label",
		}, []string{"label"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "run_duration_seconds",
			Help:      "Discovery run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		// Enrichment metrics
		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "price_lookups_total",
			Help:      "Total number of price lookups by outcome",
		}, []string{"outcome"}),
		InvestmentsPaired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "investments_paired_total",
			Help:      "Total number of wallets with a paired counter-value payment",
		}),
		GasCostsAnnotated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "gas_costs_annotated_total",
			Help:      "Total number of wallets annotated with a fiat gas cost",
		}),

		// Database metrics
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Live watch metrics
		WSMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "ws_messages_total",
			Help:      "Total number of WebSocket messages received",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPageFetched increments the pages fetched counter.
func RecordPageFetched() {
	DefaultMetrics.PagesFetched.Inc()
}

// RecordTransfersScanned adds scanned events to the scan counter.
func RecordTransfersScanned(n int) {
	DefaultMetrics.TransfersScanned.Add(float64(n))
}

// RecordClassification increments the classification counter for a label.
func RecordClassification(label string) {
	DefaultMetrics.Classifications.WithLabelValues(label).Inc()
}

// RecordRun increments the run counter with a status and observes duration.
func RecordRun(status string, seconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(seconds)
}

// RecordWalletsDiscovered adds discovered wallets to the wallet counter.
func RecordWalletsDiscovered(n int) {
	DefaultMetrics.WalletsDiscovered.Add(float64(n))
}
