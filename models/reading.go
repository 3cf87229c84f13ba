package models

import (
	"encoding/json"
	"errors"
	"time"
)

// LabelLayout is the civil timestamp format used for reading labels and
// hourly bucket keys. Lexicographic order on it matches chronological order.
const LabelLayout = "2006-01-02 15:04:05"

// SensorData is the nested payload of a stored record. Fields are kept raw
// because devices send numbers, numeric strings, or nothing at all.
type SensorData struct {
	Temperature json.RawMessage `json:"temperature,omitempty"`
	Humidity    json.RawMessage `json:"humidity,omitempty"`
	// Timestamp is milliseconds since the Unix epoch, UTC.
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// RawRecord is one row of the reading table as stored.
type RawRecord struct {
	ID         string      `json:"id,omitempty"`
	SensorData *SensorData `json:"sensorData,omitempty"`
}

func (r *RawRecord) Validate() error {
	if r.SensorData == nil {
		return errors.New("sensorData is required")
	}
	return nil
}

// Reading is a normalized sensor sample. Timestamp is expressed in the
// reference timezone with second precision.
type Reading struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Timestamp   time.Time `json:"-"`
	// Synthetic is set when the record carried no capture time and was
	// stamped with the time of normalization instead.
	Synthetic bool `json:"-"`
}

// Label renders the timestamp in LabelLayout.
func (r Reading) Label() string {
	return r.Timestamp.Format(LabelLayout)
}

func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Temperature float64 `json:"temperature"`
		Humidity    float64 `json:"humidity"`
		Timestamp   string  `json:"timestamp"`
	}{r.Temperature, r.Humidity, r.Label()})
}

// Value returns the reading's value for the given metric.
func (r Reading) Value(m Metric) float64 {
	if m == MetricHumidity {
		return r.Humidity
	}
	return r.Temperature
}
