package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec
	solanaRPCRetries       *prometheus.CounterVec

	// Reclaim Metrics
	accountsClassifiedTotal *prometheus.CounterVec
	batchesTotal            *prometheus.CounterVec
	accountsClosedTotal     prometheus.Counter
	lamportsReclaimedTotal  prometheus.Counter
	walletsProcessedTotal   *prometheus.CounterVec
	fleetInFlight           prometheus.Gauge

	// Relay Metrics
	relayRequestsTotal   *prometheus.CounterVec
	relayRequestDuration *prometheus.HistogramVec

	// Workflow Metrics
	scanActivityDuration *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),

		accountsClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reclaim_accounts_classified_total",
				Help: "Token accounts classified, by verdict",
			},
			[]string{"verdict"},
		),
		batchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reclaim_batches_total",
				Help: "Close-account batches by execution mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		accountsClosedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reclaim_accounts_closed_total",
				Help: "Token accounts closed by confirmed batches",
			},
		),
		lamportsReclaimedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reclaim_lamports_reclaimed_total",
				Help: "Rent lamports returned to owners by confirmed batches",
			},
		),
		walletsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reclaim_wallets_processed_total",
				Help: "Wallet pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		fleetInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reclaim_fleet_in_flight",
				Help: "Wallet pipelines currently holding a fleet permit",
			},
		),

		relayRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_requests_total",
				Help: "Total number of relay HTTP requests",
			},
			[]string{"kind", "status"},
		),
		relayRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_request_duration_seconds",
				Help:    "Duration of relay HTTP requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"kind"},
		),

		scanActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scan_activity_duration_seconds",
				Help:    "Duration of scan workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "status"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// Reclaim metric helpers

// RecordAccountsClassified records n accounts that received verdict.
func (m *Metrics) RecordAccountsClassified(verdict string, n int) {
	m.accountsClassifiedTotal.WithLabelValues(verdict).Add(float64(n))
}

// RecordBatch records a batch outcome ("confirmed", "failed", "uploaded").
// closed and lamports are only added for confirmed batches.
func (m *Metrics) RecordBatch(mode, outcome string, closed int, lamports uint64) {
	m.batchesTotal.WithLabelValues(mode, outcome).Inc()
	if outcome == "confirmed" {
		m.accountsClosedTotal.Add(float64(closed))
		m.lamportsReclaimedTotal.Add(float64(lamports))
	}
}

// RecordWalletProcessed records the end of one wallet pipeline run.
func (m *Metrics) RecordWalletProcessed(outcome string) {
	m.walletsProcessedTotal.WithLabelValues(outcome).Inc()
}

// RecordFleetInFlight adjusts the number of wallets holding a fleet permit.
func (m *Metrics) RecordFleetInFlight(delta float64) {
	m.fleetInFlight.Add(delta)
}

// Relay metric helpers

// RecordRelayRequest records one relay HTTP round trip.
func (m *Metrics) RecordRelayRequest(kind string, statusCode int, duration float64) {
	m.relayRequestsTotal.WithLabelValues(kind, statusCodeToString(statusCode)).Inc()
	m.relayRequestDuration.WithLabelValues(kind).Observe(duration)
}

// Workflow metric helpers

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.scanActivityDuration.WithLabelValues(activity, status).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "error"
	}
}
