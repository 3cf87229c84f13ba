package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"climate-monitor/models"
)

type ThresholdStore interface {
	Get(ctx context.Context, metric models.Metric) (models.Threshold, error)
	Put(ctx context.Context, metric models.Metric, t models.Threshold) error
}

type ThresholdHandler struct {
	store  ThresholdStore
	logger *slog.Logger
}

func NewThresholdHandler(store ThresholdStore, logger *slog.Logger) *ThresholdHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThresholdHandler{store: store, logger: logger}
}

type setThresholdsResponse struct {
	Message  string            `json:"message"`
	Response models.Thresholds `json:"response"`
}

// SetThresholds stores the bounds of every metric present in the body.
func (h *ThresholdHandler) SetThresholds(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	update, err := models.DecodeThresholdUpdate(body)
	switch {
	case errors.Is(err, models.ErrEmptyUpdate):
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	entries := update.Entries()
	updated := make(models.Thresholds, len(entries))
	for _, metric := range models.Metrics {
		t, ok := entries[metric]
		if !ok {
			continue
		}
		if err := h.store.Put(r.Context(), metric, t); err != nil {
			h.logger.Error("failed to store threshold", "metric", metric, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		updated[metric] = t
		if t.Min == nil && t.Max == nil {
			h.logger.Warn("threshold cleared", "metric", metric)
			continue
		}
		h.logger.Info("threshold updated", "metric", metric, "min", t.Min, "max", t.Max)
	}

	writeJSON(w, http.StatusOK, setThresholdsResponse{
		Message:  "Thresholds updated successfully",
		Response: updated,
	})
}

// GetThresholds returns both metrics; unset bounds are null.
func (h *ThresholdHandler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	out := make(models.Thresholds, len(models.Metrics))
	for _, metric := range models.Metrics {
		t, err := h.store.Get(r.Context(), metric)
		if err != nil {
			h.logger.Error("failed to fetch threshold", "metric", metric, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out[metric] = t
	}
	writeJSON(w, http.StatusOK, out)
}
