package models

import (
	"errors"
	"fmt"
)

// Metric names one of the monitored sensor quantities.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
)

// Metrics lists every monitored metric in evaluation order.
var Metrics = []Metric{MetricTemperature, MetricHumidity}

var ErrUnknownMetric = errors.New("unknown metric")

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricTemperature, MetricHumidity:
		return Metric(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// Title is the capitalized metric name used in alert messages.
func (m Metric) Title() string {
	switch m {
	case MetricTemperature:
		return "Temperature"
	case MetricHumidity:
		return "Humidity"
	}
	return string(m)
}

// Unit is the display unit appended to values in alert messages.
func (m Metric) Unit() string {
	switch m {
	case MetricTemperature:
		return "°C"
	case MetricHumidity:
		return "%"
	}
	return ""
}
