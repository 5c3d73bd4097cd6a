package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the client's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	backendCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loandesk",
			Subsystem: "gateway",
			Name:      "backend_calls_total",
			Help:      "Backend calls by logical endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	fallbackServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loandesk",
			Subsystem: "gateway",
			Name:      "fallback_responses_total",
			Help:      "Canned responses substituted because the backend was absent.",
		},
		[]string{"endpoint", "method"},
	)

	authFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loandesk",
			Subsystem: "gateway",
			Name:      "auth_failures_total",
			Help:      "401 responses received from the backend.",
		},
		[]string{"endpoint"},
	)

	persistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loandesk",
			Subsystem: "ledger",
			Name:      "persist_failures_total",
			Help:      "Ledger entries the backend failed to record.",
		},
		[]string{"kind"},
	)

	ledgerMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loandesk",
			Subsystem: "ledger",
			Name:      "mutations_total",
			Help:      "Local ledger mutations by kind and result.",
		},
		[]string{"kind", "result"},
	)

	consoleRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loandesk",
			Subsystem: "console",
			Name:      "requests_total",
			Help:      "Console API requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	consoleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loandesk",
			Subsystem: "console",
			Name:      "request_duration_seconds",
			Help:      "Console API request duration.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		backendCalls,
		fallbackServed,
		authFailures,
		persistFailures,
		ledgerMutations,
		consoleRequests,
		consoleDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordBackendCall counts a backend round trip. outcome is "ok" or the
// error class.
func RecordBackendCall(endpoint, outcome string) {
	backendCalls.WithLabelValues(endpoint, outcome).Inc()
}

func RecordFallback(endpoint, method string) {
	fallbackServed.WithLabelValues(endpoint, method).Inc()
}

func RecordAuthFailure(endpoint string) {
	authFailures.WithLabelValues(endpoint).Inc()
}

func RecordPersistFailure(kind string) {
	persistFailures.WithLabelValues(kind).Inc()
}

func RecordLedgerMutation(kind, result string) {
	ledgerMutations.WithLabelValues(kind, result).Inc()
}

// RecordConsoleRequest records one console API request.
func RecordConsoleRequest(method, route string, status int, duration time.Duration) {
	consoleRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	consoleDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
