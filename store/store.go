// Package store holds the reading table and the threshold table behind
// small interfaces, with SQLite, Redis and in-memory implementations.
package store

import (
	"context"
	"errors"

	"climate-monitor/models"
)

var ErrInvalidMetric = errors.New("invalid metric")

// ReadingStore is the table of raw sensor records.
type ReadingStore interface {
	Scan(ctx context.Context) ([]models.RawRecord, error)
	// Insert stores rec and returns its id, generating one when rec.ID is empty.
	Insert(ctx context.Context, rec models.RawRecord) (string, error)
	Close() error
}

// ThresholdStore holds one min/max pair per metric. Get and Put are atomic
// per metric. A metric that was never set has no bounds.
type ThresholdStore interface {
	Get(ctx context.Context, metric models.Metric) (models.Threshold, error)
	Put(ctx context.Context, metric models.Metric, t models.Threshold) error
	Close() error
}

func checkMetric(m models.Metric) error {
	if _, err := models.ParseMetric(string(m)); err != nil {
		return errors.Join(ErrInvalidMetric, err)
	}
	return nil
}
