package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"climate-monitor/models"

	"github.com/go-redis/redis/v8"
)

const (
	thresholdKeyPrefix = "threshold:"

	fieldMin       = "min_value"
	fieldMax       = "max_value"
	fieldUpdatedAt = "updated_at"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings the server before returning.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// RedisThresholdStore keeps each metric in a hash "threshold:<metric>" with
// fields min_value, max_value and updated_at. Absent bounds have no field.
type RedisThresholdStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisThresholdStore(client *redis.Client) *RedisThresholdStore {
	return &RedisThresholdStore{client: client, now: time.Now}
}

func (s *RedisThresholdStore) Get(ctx context.Context, metric models.Metric) (models.Threshold, error) {
	if err := checkMetric(metric); err != nil {
		return models.Threshold{}, err
	}
	fields, err := s.client.HGetAll(ctx, thresholdKey(metric)).Result()
	if err != nil {
		return models.Threshold{}, fmt.Errorf("get %s threshold: %w", metric, err)
	}

	var t models.Threshold
	if t.Min, err = parseBound(fields, fieldMin); err != nil {
		return models.Threshold{}, fmt.Errorf("get %s threshold: %w", metric, err)
	}
	if t.Max, err = parseBound(fields, fieldMax); err != nil {
		return models.Threshold{}, fmt.Errorf("get %s threshold: %w", metric, err)
	}
	return t, nil
}

// Put replaces both bounds of metric in one MULTI/EXEC transaction.
func (s *RedisThresholdStore) Put(ctx context.Context, metric models.Metric, t models.Threshold) error {
	if err := checkMetric(metric); err != nil {
		return err
	}
	key := thresholdKey(metric)
	values := map[string]interface{}{
		fieldUpdatedAt: s.now().UTC().Format(time.RFC3339),
	}
	if t.Min != nil {
		values[fieldMin] = strconv.FormatFloat(*t.Min, 'g', -1, 64)
	}
	if t.Max != nil {
		values[fieldMax] = strconv.FormatFloat(*t.Max, 'g', -1, 64)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s threshold: %w", metric, err)
	}
	return nil
}

// Close is a no-op; the client is shared and closed by its owner.
func (s *RedisThresholdStore) Close() error { return nil }

func thresholdKey(m models.Metric) string {
	return thresholdKeyPrefix + string(m)
}

func parseBound(fields map[string]string, name string) (*float64, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s %q: %w", name, raw, err)
	}
	return &v, nil
}
