package analytics

import (
	"fmt"
	"sort"

	"climate-monitor/models"
)

// WeeklyLookbackDays is how far before today the weekly window starts.
// The cutoff day is included, so the window spans eight calendar days.
const WeeklyLookbackDays = 7

// Latest returns the reading with the greatest timestamp label. On ties the
// earliest one in input order wins.
func Latest(readings []models.Reading) (models.Reading, bool) {
	if len(readings) == 0 {
		return models.Reading{}, false
	}
	best := 0
	bestLabel := readings[0].Label()
	for i := 1; i < len(readings); i++ {
		if l := readings[i].Label(); l > bestLabel {
			best, bestLabel = i, l
		}
	}
	return readings[best], true
}

// HourOfDay averages every reading whose local hour equals hour, across all
// calendar days present. Hours outside 0..23 match nothing.
func HourOfDay(readings []models.Reading, hour int) (models.AggregateWindow, bool) {
	w := newWindow(fmt.Sprintf("%02d", hour))
	for _, r := range readings {
		if r.Timestamp.Hour() == hour {
			w.Add(r)
		}
	}
	return w.Aggregate()
}

// HourlyBuckets groups readings by timestamp truncated to the hour and
// returns one average per non-empty bucket, sorted by label ascending.
func HourlyBuckets(readings []models.Reading) []models.AggregateWindow {
	buckets := make(map[string]*window)
	for _, r := range readings {
		label := r.Timestamp.Format("2006-01-02 15") + ":00:00"
		w, ok := buckets[label]
		if !ok {
			w = newWindow(label)
			buckets[label] = w
		}
		w.Add(r)
	}

	out := make([]models.AggregateWindow, 0, len(buckets))
	for _, w := range buckets {
		if agg, ok := w.Aggregate(); ok {
			out = append(out, agg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// DailyAverage averages the readings dated today.
func DailyAverage(readings []models.Reading, today models.Date) (models.AggregateWindow, bool) {
	w := newWindow(today.String())
	for _, r := range readings {
		if models.DateOf(r.Timestamp) == today {
			w.Add(r)
		}
	}
	return w.Aggregate()
}

// WeeklyAverage averages the readings dated on or after cutoff.
func WeeklyAverage(readings []models.Reading, cutoff models.Date) (models.AggregateWindow, bool) {
	w := newWindow(cutoff.String())
	for _, r := range readings {
		if !models.DateOf(r.Timestamp).Before(cutoff) {
			w.Add(r)
		}
	}
	return w.Aggregate()
}

// WeeklyCutoff returns the first day of the weekly window ending today.
func WeeklyCutoff(today models.Date) models.Date {
	return today.AddDays(-WeeklyLookbackDays)
}
