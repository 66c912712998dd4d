// Package metrics provides Prometheus metrics for category queries.
// It tracks query counts, latencies, expensive-call signals and the
// Lua and HTTP entry points.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all metrics
const (
	Namespace = "cattools"
)

var (
	// QueriesTotal counts category operations by operation and status
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "queries_total",
		Help:      "Total number of category operations",
	}, []string{"operation", "status"})

	// QueryDuration measures replica round trips by operation
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "query_duration_seconds",
		Help:      "Category query latency distribution by operation",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation"})

	// RowsReturned observes result sizes
	RowsReturned = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "rows_returned",
		Help:      "Rows returned per category operation",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	}, []string{"operation"})

	// ExpensiveSignals counts expensive-call signals raised
	ExpensiveSignals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "expensive_signals_total",
		Help:      "Broad queries reported to the expensive-call budget",
	})

	// BudgetExhausted counts calls refused by the expensive-call budget
	BudgetExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "budget_exhausted_total",
		Help:      "Calls refused because the render spent its expensive budget",
	})

	// LuaInvocations counts Lua library calls by function and status
	LuaInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "lua_invocations_total",
		Help:      "Lua library calls by function and status",
	}, []string{"function", "status"})

	// HTTPRequests counts API requests by route and status code
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "http_requests_total",
		Help:      "HTTP API requests by route and status code",
	}, []string{"route", "code"})
)

// Status label values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ObserveQuery records the outcome of one replica operation
func ObserveQuery(operation string, start time.Time, rows int, err error) {
	QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		QueriesTotal.WithLabelValues(operation, StatusError).Inc()
		return
	}
	QueriesTotal.WithLabelValues(operation, StatusOK).Inc()
	RowsReturned.WithLabelValues(operation).Observe(float64(rows))
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
