package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"climate-monitor/analytics"
	"climate-monitor/ingest"
	"climate-monitor/models"
	"climate-monitor/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawRecord(t *testing.T, js string) models.RawRecord {
	t.Helper()
	var rec models.RawRecord
	require.NoError(t, json.Unmarshal([]byte(js), &rec))
	return rec
}

type fixture struct {
	handler    http.Handler
	readings   *store.MemoryReadingStore
	thresholds ThresholdStore
	pipeline   *ingest.Pipeline
}

func newFixture(t *testing.T, thresholds ThresholdStore, records ...models.RawRecord) *fixture {
	t.Helper()
	readings := store.NewMemoryReadingStore(records...)
	if thresholds == nil {
		thresholds = store.NewMemoryThresholdStore()
	}
	normalizer := &analytics.Normalizer{Location: time.UTC, Now: func() time.Time { return testNow }}
	engine := analytics.NewEngine(readings, normalizer, quietLogger())

	pipeline := ingest.NewPipeline(readings, 8, quietLogger())
	pipeline.Start(context.Background(), 1)
	t.Cleanup(pipeline.Close)

	return &fixture{
		handler: NewRouter(Deps{
			Readings:     engine,
			Thresholds:   thresholds,
			Ingest:       pipeline,
			MonitorState: func() string { return "idle" },
			Logger:       quietLogger(),
		}),
		readings:   readings,
		thresholds: thresholds,
		pipeline:   pipeline,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

// 2024-01-01 08:00 and 08:30, 2024-01-02 09:00 and 11:00 UTC.
func sampleRecords(t *testing.T) []models.RawRecord {
	return []models.RawRecord{
		rawRecord(t, `{"id":"1","sensorData":{"temperature":20,"humidity":50,"timestamp":1704096000000}}`),
		rawRecord(t, `{"id":"2","sensorData":{"temperature":24,"humidity":60,"timestamp":1704097800000}}`),
		rawRecord(t, `{"id":"3","sensorData":{"temperature":"18.04","humidity":"41","timestamp":1704186000000}}`),
		rawRecord(t, `{"id":"4","sensorData":{"temperature":21.56,"humidity":39.96,"timestamp":1704193200000}}`),
	}
}

func TestEmptyStoreReturnsNotFound(t *testing.T) {
	f := newFixture(t, nil)

	for path, msg := range map[string]string{
		"/latest-temperature": "No sensor data available",
		"/latest-humidity":    "No sensor data available",
		"/hourly-average/8":   "No data available for hour 8",
		"/hourly-averages":    "No hourly data available",
		"/daily-averages":     "No daily data available",
		"/weekly-averages":    "No weekly data available",
	} {
		t.Run(path, func(t *testing.T) {
			rec, body := f.do(t, http.MethodGet, path, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, msg, body["error"])
		})
	}
}

func TestLatest(t *testing.T) {
	f := newFixture(t, nil, sampleRecords(t)...)

	rec, body := f.do(t, http.MethodGet, "/latest-temperature", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"temperature": 21.6}, body)

	rec, body = f.do(t, http.MethodGet, "/latest-humidity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"humidity": 40.0}, body)
}

func TestHourlyAverage(t *testing.T) {
	f := newFixture(t, nil, sampleRecords(t)...)

	rec, body := f.do(t, http.MethodGet, "/hourly-average/8", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"hour": 8.0, "temperature": 22.0, "humidity": 55.0}, body)

	rec, body = f.do(t, http.MethodGet, "/hourly-average/3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No data available for hour 3", body["error"])

	for _, hour := range []string{"24", "-1", "abc", "8.5"} {
		rec, body = f.do(t, http.MethodGet, "/hourly-average/"+hour, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, hour)
		assert.Equal(t, "Hour must be between 0 and 23", body["error"])
	}
}

func TestHourlyAverages(t *testing.T) {
	f := newFixture(t, nil, sampleRecords(t)...)

	rec, _ := f.do(t, http.MethodGet, "/hourly-averages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []map[string]any{
		{"hour": "2024-01-01 08:00:00", "temperature": 22.0, "humidity": 55.0},
		{"hour": "2024-01-02 09:00:00", "temperature": 18.0, "humidity": 41.0},
		{"hour": "2024-01-02 11:00:00", "temperature": 21.6, "humidity": 40.0},
	}, out)
}

func TestDailyAndWeeklyAverages(t *testing.T) {
	f := newFixture(t, nil, sampleRecords(t)...)

	rec, body := f.do(t, http.MethodGet, "/daily-averages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 19.8, body["average_temperature"], 1e-9)
	assert.InDelta(t, 40.5, body["average_humidity"], 1e-9)

	rec, body = f.do(t, http.MethodGet, "/weekly-averages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 20.9, body["average_temperature"], 1e-9)
	assert.InDelta(t, 47.7, body["average_humidity"], 1e-9)
}

func TestThresholds(t *testing.T) {
	f := newFixture(t, nil)

	rec, body := f.do(t, http.MethodGet, "/get-thresholds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"temperature": map[string]any{"min": nil, "max": nil},
		"humidity":    map[string]any{"min": nil, "max": nil},
	}, body)

	rec, body = f.do(t, http.MethodPost, "/set-thresholds",
		`{"temperature":{"min":18,"max":null},"pressure":{"min":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Thresholds updated successfully", body["message"])
	assert.Equal(t, map[string]any{
		"temperature": map[string]any{"min": 18.0, "max": nil},
	}, body["response"])

	rec, body = f.do(t, http.MethodGet, "/get-thresholds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"min": 18.0, "max": nil}, body["temperature"])
	assert.Equal(t, map[string]any{"min": nil, "max": nil}, body["humidity"])

	got, err := f.thresholds.Get(context.Background(), models.MetricTemperature)
	require.NoError(t, err)
	assert.Equal(t, 18.0, *got.Min)
}

func TestSetThresholdsEmptyObjectClearsBounds(t *testing.T) {
	thresholds := store.NewMemoryThresholdStore()
	require.NoError(t, thresholds.Put(context.Background(), models.MetricTemperature, models.Threshold{
		Min: models.Float(18),
		Max: models.Float(27),
	}))
	var logs bytes.Buffer
	h := NewThresholdHandler(thresholds, slog.New(slog.NewTextHandler(&logs, nil)))

	rec := httptest.NewRecorder()
	h.SetThresholds(rec, httptest.NewRequest(http.MethodPost, "/set-thresholds", strings.NewReader(`{"temperature":{}}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Thresholds updated successfully","response":{"temperature":{"min":null,"max":null}}}`,
		rec.Body.String())

	got, err := thresholds.Get(context.Background(), models.MetricTemperature)
	require.NoError(t, err)
	assert.Nil(t, got.Min)
	assert.Nil(t, got.Max)
	assert.Contains(t, logs.String(), "threshold cleared")
	assert.Contains(t, logs.String(), "metric=temperature")
}

func TestSetThresholdsRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)

	for _, body := range []string{"", "null", "{}", `{"pressure":{"min":1}}`} {
		rec, out := f.do(t, http.MethodPost, "/set-thresholds", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "No data provided", out["error"])
	}

	rec, out := f.do(t, http.MethodPost, "/set-thresholds", `{"temperature":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON format", out["error"])
}

type brokenThresholds struct{}

func (brokenThresholds) Get(context.Context, models.Metric) (models.Threshold, error) {
	return models.Threshold{}, errors.New("redis: connection refused")
}

func (brokenThresholds) Put(context.Context, models.Metric, models.Threshold) error {
	return errors.New("redis: connection refused")
}

func TestThresholdStoreFailure(t *testing.T) {
	f := newFixture(t, brokenThresholds{})

	rec, body := f.do(t, http.MethodGet, "/get-thresholds", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "redis: connection refused", body["error"])

	rec, _ = f.do(t, http.MethodPost, "/set-thresholds", `{"humidity":{"max":70}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSubmitReading(t *testing.T) {
	f := newFixture(t, nil)

	rec, body := f.do(t, http.MethodPost, "/readings",
		`{"sensorData":{"temperature":19.5,"humidity":45,"timestamp":1704186000000}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "accepted", body["status"])
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	f.pipeline.Close()
	recs, err := f.readings.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)

	rec, _ = f.do(t, http.MethodPost, "/readings", `{"sensorData":{}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubmitReadingRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)

	rec, body := f.do(t, http.MethodPost, "/readings", `{"id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "sensorData is required", body["error"])

	rec, _ = f.do(t, http.MethodPost, "/readings", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndRouting(t *testing.T) {
	f := newFixture(t, nil)

	rec, body := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "idle", body["monitor"])

	rec, body = f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", body["error"])

	rec, _ = f.do(t, http.MethodDelete, "/get-thresholds", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 21.2, round1(21.25))
	assert.Equal(t, 0.2, round1(0.25))
	assert.Equal(t, 18.0, round1(18.04))
	assert.Equal(t, -3.5, round1(-3.45000001))
	assert.Equal(t, 40.0, round1(39.96))
}
