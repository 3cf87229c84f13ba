package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"climate-monitor/analytics"
	"climate-monitor/ingest"
	"climate-monitor/models"

	"github.com/gorilla/mux"
)

// ReadingProvider yields the normalized readings and the reference date.
type ReadingProvider interface {
	Readings(ctx context.Context) ([]models.Reading, error)
	Today() models.Date
}

// Submitter accepts raw records for asynchronous storage.
type Submitter interface {
	Submit(rec models.RawRecord) (string, error)
}

type SensorHandler struct {
	readings ReadingProvider
	ingest   Submitter
	logger   *slog.Logger
}

func NewSensorHandler(readings ReadingProvider, ingest Submitter, logger *slog.Logger) *SensorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SensorHandler{
		readings: readings,
		ingest:   ingest,
		logger:   logger,
	}
}

type averagesResponse struct {
	AverageTemperature float64 `json:"average_temperature"`
	AverageHumidity    float64 `json:"average_humidity"`
}

type hourAverageResponse struct {
	Hour        int     `json:"hour"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

type bucketResponse struct {
	Hour        string  `json:"hour"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// load fetches readings and writes a 500 on failure.
func (h *SensorHandler) load(w http.ResponseWriter, r *http.Request) ([]models.Reading, bool) {
	readings, err := h.readings.Readings(r.Context())
	if err != nil {
		h.logger.Error("failed to load sensor data", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load sensor data")
		return nil, false
	}
	return readings, true
}

func (h *SensorHandler) LatestTemperature(w http.ResponseWriter, r *http.Request) {
	h.latest(w, r, models.MetricTemperature)
}

func (h *SensorHandler) LatestHumidity(w http.ResponseWriter, r *http.Request) {
	h.latest(w, r, models.MetricHumidity)
}

func (h *SensorHandler) latest(w http.ResponseWriter, r *http.Request, metric models.Metric) {
	readings, ok := h.load(w, r)
	if !ok {
		return
	}
	latest, ok := analytics.Latest(readings)
	if !ok {
		writeError(w, http.StatusNotFound, "No sensor data available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		string(metric): round1(latest.Value(metric)),
	})
}

func (h *SensorHandler) HourlyAverage(w http.ResponseWriter, r *http.Request) {
	hour, err := strconv.Atoi(mux.Vars(r)["hour"])
	if err != nil || hour < 0 || hour > 23 {
		writeError(w, http.StatusBadRequest, "Hour must be between 0 and 23")
		return
	}

	readings, ok := h.load(w, r)
	if !ok {
		return
	}
	avg, ok := analytics.HourOfDay(readings, hour)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No data available for hour %d", hour))
		return
	}
	writeJSON(w, http.StatusOK, hourAverageResponse{
		Hour:        hour,
		Temperature: round1(avg.Temperature),
		Humidity:    round1(avg.Humidity),
	})
}

func (h *SensorHandler) HourlyAverages(w http.ResponseWriter, r *http.Request) {
	readings, ok := h.load(w, r)
	if !ok {
		return
	}
	buckets := analytics.HourlyBuckets(readings)
	if len(buckets) == 0 {
		writeError(w, http.StatusNotFound, "No hourly data available")
		return
	}
	out := make([]bucketResponse, len(buckets))
	for i, b := range buckets {
		out[i] = bucketResponse{
			Hour:        b.Label,
			Temperature: round1(b.Temperature),
			Humidity:    round1(b.Humidity),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SensorHandler) DailyAverages(w http.ResponseWriter, r *http.Request) {
	readings, ok := h.load(w, r)
	if !ok {
		return
	}
	avg, ok := analytics.DailyAverage(readings, h.readings.Today())
	if !ok {
		writeError(w, http.StatusNotFound, "No daily data available")
		return
	}
	writeJSON(w, http.StatusOK, averagesResponse{
		AverageTemperature: round1(avg.Temperature),
		AverageHumidity:    round1(avg.Humidity),
	})
}

func (h *SensorHandler) WeeklyAverages(w http.ResponseWriter, r *http.Request) {
	readings, ok := h.load(w, r)
	if !ok {
		return
	}
	avg, ok := analytics.WeeklyAverage(readings, analytics.WeeklyCutoff(h.readings.Today()))
	if !ok {
		writeError(w, http.StatusNotFound, "No weekly data available")
		return
	}
	writeJSON(w, http.StatusOK, averagesResponse{
		AverageTemperature: round1(avg.Temperature),
		AverageHumidity:    round1(avg.Humidity),
	})
}

// SubmitReading queues a raw record for storage.
func (h *SensorHandler) SubmitReading(w http.ResponseWriter, r *http.Request) {
	var rec models.RawRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.ingest.Submit(rec)
	switch {
	case errors.Is(err, ingest.ErrQueueFull), errors.Is(err, ingest.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to submit reading", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit reading")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"id":     id,
	})
}
