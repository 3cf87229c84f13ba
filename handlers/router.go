package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Readings   ReadingProvider
	Thresholds ThresholdStore
	// Ingest enables POST /readings when set.
	Ingest Submitter
	// Alerts serves the live alert stream on /ws when set.
	Alerts       http.Handler
	MonitorState func() string
	Logger       *slog.Logger

	CORSOrigins []string
	// AccessLog receives Apache combined log lines when set.
	AccessLog io.Writer
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.Use(recoverer(logger), instrument)

	sensors := NewSensorHandler(d.Readings, d.Ingest, logger)
	thresholds := NewThresholdHandler(d.Thresholds, logger)

	r.HandleFunc("/health", NewHealthCheck(d.MonitorState)).Methods(http.MethodGet)
	r.Path("/metrics").Handler(promhttp.Handler())

	r.HandleFunc("/latest-temperature", sensors.LatestTemperature).Methods(http.MethodGet)
	r.HandleFunc("/latest-humidity", sensors.LatestHumidity).Methods(http.MethodGet)
	r.HandleFunc("/hourly-average/{hour}", sensors.HourlyAverage).Methods(http.MethodGet)
	r.HandleFunc("/hourly-averages", sensors.HourlyAverages).Methods(http.MethodGet)
	r.HandleFunc("/daily-averages", sensors.DailyAverages).Methods(http.MethodGet)
	r.HandleFunc("/weekly-averages", sensors.WeeklyAverages).Methods(http.MethodGet)
	if d.Ingest != nil {
		r.HandleFunc("/readings", sensors.SubmitReading).Methods(http.MethodPost)
	}

	r.HandleFunc("/set-thresholds", thresholds.SetThresholds).Methods(http.MethodPost)
	r.HandleFunc("/get-thresholds", thresholds.GetThresholds).Methods(http.MethodGet)

	if d.Alerts != nil {
		r.Handle("/ws", d.Alerts).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	var h http.Handler = gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(origins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)

	if d.AccessLog != nil {
		h = gorillahandlers.LoggingHandler(d.AccessLog, h)
	}
	return h
}

func recoverer(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in handler",
						"path", r.URL.Path,
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
