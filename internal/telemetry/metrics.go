package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadak_reconciliations_total",
			Help: "Reconciliation attempts by entry point and outcome",
		},
		[]string{"source", "outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadak_tickets_issued_total",
			Help: "Tickets issued by reconciliation",
		},
	)

	ticketsOversold = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadak_tickets_oversold_total",
			Help: "Tickets issued beyond a ticket type's allocation",
		},
	)

	checkIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadak_checkins_total",
			Help: "Check-in attempts by result",
		},
		[]string{"result"},
	)

	txRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadak_store_tx_retries_total",
			Help: "Store transactions re-run after a conflicting write",
		},
		[]string{"store"},
	)

	txConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadak_store_tx_conflicts_total",
			Help: "Store transactions that exhausted their retries",
		},
		[]string{"store"},
	)

	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadak_gateway_requests_total",
			Help: "Payment gateway calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	gatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadak_gateway_request_duration_seconds",
			Help:    "Payment gateway call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	webhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadak_webhooks_total",
			Help: "Gateway webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordReconciliation counts one reconciliation attempt.
func RecordReconciliation(source, outcome string) {
	reconciliations.WithLabelValues(source, outcome).Inc()
}

func RecordTicketsIssued(n int) {
	ticketsIssued.Add(float64(n))
}

func RecordOversold(n int) {
	ticketsOversold.Add(float64(n))
}

func RecordCheckIn(result string) {
	checkIns.WithLabelValues(result).Inc()
}

func RecordTxRetry(store string) {
	txRetries.WithLabelValues(store).Inc()
}

func RecordTxConflict(store string) {
	txConflicts.WithLabelValues(store).Inc()
}

// ObserveGateway records the outcome and latency of a gateway call.
func ObserveGateway(operation, outcome string, started time.Time) {
	gatewayRequests.WithLabelValues(operation, outcome).Inc()
	gatewayLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func RecordWebhook(outcome string) {
	webhooks.WithLabelValues(outcome).Inc()
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
