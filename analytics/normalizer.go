package analytics

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"time"

	"climate-monitor/models"

	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1000)
	minUnix  = decimal.NewFromInt(math.MinInt64)
	maxUnix  = decimal.NewFromInt(math.MaxInt64)
)

// Normalizer turns stored records into Readings in a reference timezone.
//
// Temperature and humidity that are absent or not numeric become 0.0. This
// lossy default is kept for compatibility with existing dashboards; callers
// that need to tell a real zero from a missing value cannot do so today.
type Normalizer struct {
	Location *time.Location
	// Now stamps records that carry no capture time. Defaults to time.Now.
	Now func() time.Time
}

func NewNormalizer(loc *time.Location) *Normalizer {
	return &Normalizer{Location: loc, Now: time.Now}
}

// Normalize converts raw records into readings ordered by timestamp
// descending. Records without a sensor payload or with an unparseable
// timestamp are dropped. Ties keep their input order.
func (n *Normalizer) Normalize(raw []models.RawRecord) []models.Reading {
	out := make([]models.Reading, 0, len(raw))
	for _, rec := range raw {
		r, ok := n.normalizeOne(rec)
		if !ok {
			continue
		}
		out = append(out, r)
	}

	labels := make([]string, len(out))
	for i := range out {
		labels[i] = out[i].Label()
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return labels[idx[a]] > labels[idx[b]]
	})
	sorted := make([]models.Reading, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

func (n *Normalizer) normalizeOne(rec models.RawRecord) (models.Reading, bool) {
	if rec.SensorData == nil {
		return models.Reading{}, false
	}
	loc := n.location()

	r := models.Reading{
		Temperature: numberOrZero(rec.SensorData.Temperature),
		Humidity:    numberOrZero(rec.SensorData.Humidity),
	}

	ms, present, ok := parseNumber(rec.SensorData.Timestamp)
	switch {
	case present && !ok:
		return models.Reading{}, false
	case !present || ms.IsZero():
		r.Timestamp = n.now().In(loc).Truncate(time.Second)
		r.Synthetic = true
	default:
		ts, ok := unixMilli(ms, loc)
		if !ok {
			return models.Reading{}, false
		}
		r.Timestamp = ts
	}
	return r, true
}

// unixMilli converts epoch milliseconds to a time in loc. Values whose
// label would not have a four-digit year are rejected so that label order
// stays chronological.
func unixMilli(ms decimal.Decimal, loc *time.Location) (time.Time, bool) {
	sec := ms.Div(thousand).Floor()
	if sec.LessThan(minUnix) || sec.GreaterThan(maxUnix) {
		return time.Time{}, false
	}
	t := time.Unix(sec.IntPart(), 0).In(loc)
	if y := t.Year(); y < 1 || y > 9999 {
		return time.Time{}, false
	}
	return t, true
}

func (n *Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.UTC
	}
	return n.Location
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

func numberOrZero(raw json.RawMessage) float64 {
	d, _, ok := parseNumber(raw)
	if !ok {
		return 0
	}
	return d.InexactFloat64()
}

// parseNumber accepts a JSON number or a JSON string holding a number.
// present is false for missing, null and empty-string values.
func parseNumber(raw json.RawMessage) (d decimal.Decimal, present bool, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false, false
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, true, false
		}
		if text == "" {
			return decimal.Zero, false, false
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, true, false
	}
	return d, true, true
}
