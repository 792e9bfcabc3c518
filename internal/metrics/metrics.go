package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pool metrics
	PoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "broker_pool_count",
		Help: "Total number of LP backends registered with the market",
	})

	ProtocolEnabled = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "broker_protocol_enabled",
			Help: "Whether an LP protocol is enabled (1) or disabled (0)",
		},
		[]string{"protocol"},
	)

	// Swap metrics
	SwapRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_swap_requests_total",
			Help: "Total number of swap settlements by outcome",
		},
		[]string{"status", "code"},
	)

	SwapDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "broker_swap_duration_seconds",
		Help:    "Swap settlement duration in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.05, 0.1},
	})

	RoutesPerSwap = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "broker_routes_per_swap",
		Help:    "Number of routes per swap request",
		Buckets: []float64{1, 2, 3, 5, 10, 20},
	})

	FeesRetained = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_fees_retained_total",
			Help: "Fees retained by the broker, in base units of the fee token",
		},
		[]string{"token"},
	)

	MisconductDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_misconduct_detected_total",
			Help: "Balance verification failures attributed to LP backends",
		},
		[]string{"check"},
	)

	// Hop metrics
	HopsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_hops_executed_total",
			Help: "Total number of hops dispatched to LP backends",
		},
		[]string{"protocol", "status"},
	)

	HopDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_hop_duration_seconds",
			Help:    "Single hop execution duration in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
		[]string{"protocol"},
	)

	// Ledger metrics
	LedgerCommits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broker_ledger_commits_total",
		Help: "Total number of committed ledger calls",
	})

	LedgerRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broker_ledger_rollbacks_total",
		Help: "Total number of reverted ledger calls",
	})

	PersistenceWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_persistence_writes_total",
			Help: "Total number of records written to the database",
		},
		[]string{"bucket"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_signature_failures_total",
			Help: "Rejected request signatures by reason",
		},
		[]string{"reason"},
	)
)
