package models

import (
	"encoding/json"
	"errors"
)

// Threshold holds the optional bounds for one metric. A nil bound is not
// configured and never counts as a breach.
type Threshold struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// Thresholds is a snapshot of every metric's bounds.
type Thresholds map[Metric]Threshold

// ThresholdUpdate is the body accepted by the set-thresholds endpoint.
// Metrics absent from the body are left untouched.
type ThresholdUpdate struct {
	Temperature *Threshold `json:"temperature,omitempty"`
	Humidity    *Threshold `json:"humidity,omitempty"`
}

var ErrEmptyUpdate = errors.New("no threshold data provided")

// Entries returns the bounds of every metric present in the update.
func (u ThresholdUpdate) Entries() map[Metric]Threshold {
	out := make(map[Metric]Threshold, 2)
	if u.Temperature != nil {
		out[MetricTemperature] = *u.Temperature
	}
	if u.Humidity != nil {
		out[MetricHumidity] = *u.Humidity
	}
	return out
}

func (u ThresholdUpdate) Validate() error {
	if u.Temperature == nil && u.Humidity == nil {
		return ErrEmptyUpdate
	}
	return nil
}

// DecodeThresholdUpdate parses a request body. Empty bodies, JSON null and
// bodies that name no known metric are rejected with ErrEmptyUpdate.
func DecodeThresholdUpdate(body []byte) (ThresholdUpdate, error) {
	var u ThresholdUpdate
	if len(body) == 0 {
		return u, ErrEmptyUpdate
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return u, err
	}
	return u, u.Validate()
}

// Float returns a pointer to v, for building thresholds in code.
func Float(v float64) *float64 {
	return &v
}
