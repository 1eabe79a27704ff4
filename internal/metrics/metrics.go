package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Escrow lifecycle
	EscrowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Successful escrow status transitions",
		},
		[]string{"to"},
	)
	EscrowTransitionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_transition_conflicts_total",
			Help: "Transitions rejected by the status precondition",
		},
	)

	// Payments
	PaymentVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment verification attempts by result",
		},
		[]string{"result"}, // confirmed|replay|upstream_error|rejected
	)

	// Notifications
	NotificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification rows written",
		},
	)
	NotificationsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Notification writes dropped after failure",
		},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(EscrowTransitionsTotal)
	prometheus.MustRegister(EscrowTransitionConflicts)
	prometheus.MustRegister(PaymentVerificationsTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(NotificationsFailed)
	prometheus.MustRegister(WorkerQueueDepth)
}
