package store

import (
	"context"
	"sync"

	"climate-monitor/models"

	"github.com/google/uuid"
)

// MemoryThresholdStore keeps thresholds in process memory.
type MemoryThresholdStore struct {
	mu         sync.RWMutex
	thresholds map[models.Metric]models.Threshold
}

func NewMemoryThresholdStore() *MemoryThresholdStore {
	return &MemoryThresholdStore{thresholds: make(map[models.Metric]models.Threshold)}
}

func (s *MemoryThresholdStore) Get(_ context.Context, metric models.Metric) (models.Threshold, error) {
	if err := checkMetric(metric); err != nil {
		return models.Threshold{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyThreshold(s.thresholds[metric]), nil
}

func (s *MemoryThresholdStore) Put(_ context.Context, metric models.Metric, t models.Threshold) error {
	if err := checkMetric(metric); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds[metric] = copyThreshold(t)
	return nil
}

func (s *MemoryThresholdStore) Close() error { return nil }

func copyThreshold(t models.Threshold) models.Threshold {
	var out models.Threshold
	if t.Min != nil {
		out.Min = models.Float(*t.Min)
	}
	if t.Max != nil {
		out.Max = models.Float(*t.Max)
	}
	return out
}

// MemoryReadingStore keeps raw records in insertion order.
type MemoryReadingStore struct {
	mu      sync.RWMutex
	records []models.RawRecord
}

func NewMemoryReadingStore(records ...models.RawRecord) *MemoryReadingStore {
	return &MemoryReadingStore{records: append([]models.RawRecord(nil), records...)}
}

func (s *MemoryReadingStore) Scan(_ context.Context) ([]models.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.RawRecord(nil), s.records...), nil
}

func (s *MemoryReadingStore) Insert(_ context.Context, rec models.RawRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *MemoryReadingStore) Close() error { return nil }
