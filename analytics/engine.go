package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"climate-monitor/models"
)

// RecordScanner is the read side of the reading table.
type RecordScanner interface {
	Scan(ctx context.Context) ([]models.RawRecord, error)
}

// Engine rescans the reading table and normalizes it on every call. There
// is no cache, so the API and the monitor never disagree about staleness
// beyond what the table itself shows.
type Engine struct {
	store      RecordScanner
	normalizer *Normalizer
	logger     *slog.Logger
}

func NewEngine(store RecordScanner, normalizer *Normalizer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:      store,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Readings returns every normalized reading, newest first.
func (e *Engine) Readings(ctx context.Context) ([]models.Reading, error) {
	raw, err := e.store.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan readings: %w", err)
	}
	readings := e.normalizer.Normalize(raw)
	if dropped := len(raw) - len(readings); dropped > 0 {
		e.logger.Debug("dropped malformed records", "dropped", dropped, "scanned", len(raw))
	}
	return readings, nil
}

// Now returns the current time in the reference timezone.
func (e *Engine) Now() time.Time {
	return e.normalizer.now().In(e.normalizer.location())
}

// Today returns the current calendar date in the reference timezone.
func (e *Engine) Today() models.Date {
	return models.DateOf(e.Now())
}
