package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"climate-monitor/models"
)

// DefaultMonitorInterval is the pause between two monitor cycles.
const DefaultMonitorInterval = 5 * time.Second

// ReadingSource yields the current normalized readings.
type ReadingSource interface {
	Readings(ctx context.Context) ([]models.Reading, error)
}

// ThresholdSource yields the configured bounds of one metric. A metric that
// was never set must come back with nil bounds, not an error, so the other
// metric is still evaluated.
type ThresholdSource interface {
	Get(ctx context.Context, metric models.Metric) (models.Threshold, error)
}

// AlertPublisher delivers alerts to subscribers.
type AlertPublisher interface {
	Publish(ctx context.Context, alert models.Alert) error
}

type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Outcome classifies how a monitor cycle ended.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeAlerted        Outcome = "alerted"
	OutcomeNoData         Outcome = "no_data"
	OutcomeReadError      Outcome = "read_error"
	OutcomeInvalidReading Outcome = "invalid_reading"
	OutcomeThresholdError Outcome = "threshold_error"
	OutcomePanic          Outcome = "panic"
)

// Monitor periodically compares the latest reading against the configured
// thresholds and publishes an alert for every breach. Every failure inside
// a cycle only skips the rest of that cycle; the loop stops when its
// context is cancelled.
type Monitor struct {
	readings   ReadingSource
	thresholds ThresholdSource
	publisher  AlertPublisher

	interval time.Duration
	logger   *slog.Logger
	onAlert  func(models.Alert)
	onCycle  func(Outcome)

	state atomic.Int32
}

type MonitorOption func(*Monitor)

func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithAlertHook registers a callback invoked for every emitted alert,
// whether or not publishing it succeeded.
func WithAlertHook(fn func(models.Alert)) MonitorOption {
	return func(m *Monitor) { m.onAlert = fn }
}

// WithCycleHook registers a callback invoked with each cycle's outcome.
func WithCycleHook(fn func(Outcome)) MonitorOption {
	return func(m *Monitor) { m.onCycle = fn }
}

func NewMonitor(readings ReadingSource, thresholds ThresholdSource, publisher AlertPublisher, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		readings:   readings,
		thresholds: thresholds,
		publisher:  publisher,
		interval:   DefaultMonitorInterval,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Run evaluates one cycle immediately and then one per interval until ctx
// is done. It always returns ctx.Err().
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started", "interval", m.interval)
	defer func() {
		m.state.Store(int32(StateStopped))
		m.logger.Info("monitor stopped")
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		m.RunCycle(ctx)
		timer.Reset(m.interval)
	}
}

// RunCycle performs a single evaluation and returns the alerts it emitted.
func (m *Monitor) RunCycle(ctx context.Context) (alerts []models.Alert, outcome Outcome) {
	m.state.Store(int32(StateEvaluating))
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("unexpected error in monitor cycle", "panic", r)
			outcome = OutcomePanic
		}
		m.state.Store(int32(StateIdle))
		if m.onCycle != nil {
			m.onCycle(outcome)
		}
	}()

	readings, err := m.readings.Readings(ctx)
	if err != nil {
		m.logger.Warn("failed to fetch sensor data", "error", err)
		return nil, OutcomeReadError
	}
	latest, ok := Latest(readings)
	if !ok {
		m.logger.Warn("no sensor data received")
		return nil, OutcomeNoData
	}
	if !finite(latest.Temperature) || !finite(latest.Humidity) {
		m.logger.Warn("error parsing sensor data",
			"temperature", latest.Temperature,
			"humidity", latest.Humidity,
			"timestamp", latest.Label(),
		)
		return nil, OutcomeInvalidReading
	}

	thresholds := make(models.Thresholds, len(models.Metrics))
	for _, metric := range models.Metrics {
		t, err := m.thresholds.Get(ctx, metric)
		if err != nil {
			m.logger.Warn("failed to fetch thresholds", "metric", metric, "error", err)
			return nil, OutcomeThresholdError
		}
		thresholds[metric] = t
	}

	alerts = EvaluateReading(latest, thresholds)
	for _, alert := range alerts {
		if m.onAlert != nil {
			m.onAlert(alert)
		}
		m.logger.Debug("alert", "type", alert.Kind, "value", alert.Value, "message", alert.Message)
		if err := m.publisher.Publish(ctx, alert); err != nil {
			m.logger.Error("failed to send alert", "type", alert.Kind, "error", err)
		}
	}

	m.logger.Info("monitored",
		"temperature", latest.Temperature,
		"humidity", latest.Humidity,
		"alerts", len(alerts),
	)
	if len(alerts) > 0 {
		return alerts, OutcomeAlerted
	}
	return nil, OutcomeOK
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
