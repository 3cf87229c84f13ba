// Package bus delivers alerts to realtime subscribers.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"climate-monitor/models"
)

// EventAlert is the event name carried by every alert message.
const EventAlert = "alert"

var ErrNotConnected = errors.New("publisher not connected")

type Publisher interface {
	Publish(ctx context.Context, alert models.Alert) error
}

// Event is the envelope sent to websocket subscribers.
type Event struct {
	Event string       `json:"event"`
	Data  models.Alert `json:"data"`
}

func encodeAlert(alert models.Alert) ([]byte, error) {
	return json.Marshal(alert)
}

// Sink names a publisher so failures can be attributed.
type Sink struct {
	Name      string
	Publisher Publisher
}

// Fanout publishes every alert to all sinks. One failing sink does not
// prevent delivery to the others; failures are joined into the result.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Add(name string, p Publisher) {
	f.sinks = append(f.sinks, Sink{Name: name, Publisher: p})
}

func (f *Fanout) Publish(ctx context.Context, alert models.Alert) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publisher.Publish(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Names lists the configured sinks.
func (f *Fanout) Names() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name
	}
	return names
}
