package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_admissions_total",
			Help: "Total quota admission decisions by outcome",
		},
		[]string{"decision"},
	)

	AdmissionErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_admission_errors_total",
			Help: "Total admission checks denied due to internal errors",
		},
	)

	ChatDispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_chat_dispatches_total",
			Help: "Total chat requests dispatched to the model runtime",
		},
		[]string{"status"},
	)

	ChatDispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_chat_dispatch_duration_seconds",
			Help:    "Model runtime dispatch latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)
)

// Admission decision label values.
const (
	DecisionAllowed       = "allowed"
	DecisionAdminExempt   = "admin_exempt"
	DecisionPerUserDenied = "per_user_limit_exceeded"
	DecisionGlobalDenied  = "global_limit_exceeded"
)
