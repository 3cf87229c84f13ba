package models

// AggregateWindow is the mean of the readings that fell into one window.
// Windows without readings are never produced.
type AggregateWindow struct {
	Label       string  `json:"hour"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Count       int     `json:"-"`
}
