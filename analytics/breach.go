package analytics

import (
	"climate-monitor/models"
)

// Evaluate checks value against both bounds of t independently. A bound
// that is not configured is never checked. With min > max both alerts can
// fire for the same value; that misconfiguration is reported, not hidden.
func Evaluate(m models.Metric, value float64, t models.Threshold) []models.Alert {
	var alerts []models.Alert
	if t.Min != nil && value < *t.Min {
		alerts = append(alerts, models.NewLowAlert(m, value, *t.Min))
	}
	if t.Max != nil && value > *t.Max {
		alerts = append(alerts, models.NewHighAlert(m, value, *t.Max))
	}
	return alerts
}

// EvaluateReading runs Evaluate for every metric in models.Metrics order.
// Metrics missing from th produce no alerts.
func EvaluateReading(r models.Reading, th models.Thresholds) []models.Alert {
	var alerts []models.Alert
	for _, m := range models.Metrics {
		t, ok := th[m]
		if !ok {
			continue
		}
		alerts = append(alerts, Evaluate(m, r.Value(m), t)...)
	}
	return alerts
}
