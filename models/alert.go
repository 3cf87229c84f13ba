package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Alert is emitted once per detected breach per monitor cycle.
type Alert struct {
	Kind    Metric  `json:"type"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}

func NewLowAlert(m Metric, value, min float64) Alert {
	return Alert{
		Kind:  m,
		Value: value,
		Message: fmt.Sprintf("%s too low! Current: %s%s, Minimum: %s%s",
			m.Title(), FormatValue(value), m.Unit(), FormatValue(min), m.Unit()),
	}
}

func NewHighAlert(m Metric, value, max float64) Alert {
	return Alert{
		Kind:  m,
		Value: value,
		Message: fmt.Sprintf("%s too high! Current: %s%s, Maximum: %s%s",
			m.Title(), FormatValue(value), m.Unit(), FormatValue(max), m.Unit()),
	}
}

// FormatValue prints the shortest representation of v, keeping a trailing
// ".0" for integral values so 15 reads as "15.0".
func FormatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
