package handlers

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	alertsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_emitted_total",
			Help: "Total number of threshold alerts emitted",
		},
		[]string{"type"},
	)

	monitorCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_cycles_total",
			Help: "Total number of monitor cycles by outcome",
		},
		[]string{"outcome"},
	)

	ingestDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_dropped_total",
			Help: "Total number of sensor records rejected by a full ingest queue",
		},
	)
)

// CountAlert records an emitted alert of the given type.
func CountAlert(kind string) {
	alertsEmittedTotal.WithLabelValues(kind).Inc()
}

// CountCycle records a finished monitor cycle.
func CountCycle(outcome string) {
	monitorCyclesTotal.WithLabelValues(outcome).Inc()
}

// CountIngestDrop records a rejected sensor record.
func CountIngestDrop() {
	ingestDroppedTotal.Inc()
}

// instrument labels requests by route template so path parameters do not
// inflate series cardinality.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		m := httpsnoop.CaptureMetrics(next, w, r)

		requestDurationSeconds.WithLabelValues(r.Method, endpoint).Observe(m.Duration.Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(m.Code)).Inc()
	})
}
