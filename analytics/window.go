package analytics

import (
	"climate-monitor/models"

	"gonum.org/v1/gonum/stat"
)

// window collects the readings that belong to one aggregation bucket.
type window struct {
	label        string
	temperatures []float64
	humidities   []float64
}

func newWindow(label string) *window {
	return &window{label: label}
}

func (w *window) Add(r models.Reading) {
	w.temperatures = append(w.temperatures, r.Temperature)
	w.humidities = append(w.humidities, r.Humidity)
}

func (w *window) Count() int {
	return len(w.temperatures)
}

// Aggregate returns the window's means. ok is false for an empty window so
// that callers never report a zero or NaN average.
func (w *window) Aggregate() (models.AggregateWindow, bool) {
	if w.Count() == 0 {
		return models.AggregateWindow{}, false
	}
	return models.AggregateWindow{
		Label:       w.label,
		Temperature: stat.Mean(w.temperatures, nil),
		Humidity:    stat.Mean(w.humidities, nil),
		Count:       w.Count(),
	}, true
}
