// Package report delivers scan results to external systems.
//
// Results are wrapped in an Event and handed to a Sink. NATSPublisher
// publishes events on a subject; RedisRecorder appends them to a list.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	clamd "github.com/DevHatRo/clamd-go"
)

// Event is the envelope for one scan result.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`
	// Source names the scanned input, e.g. a file path or "-" for stdin.
	Source string `json:"source"`
	// Result is the scan result.
	Result *clamd.ScanResult `json:"result"`
	// Published is the time the event was created.
	Published time.Time `json:"published"`
}

// NewEvent wraps result in a new event.
func NewEvent(source string, result *clamd.ScanResult) Event {
	return Event{
		ID:        uuid.NewString(),
		Source:    source,
		Result:    result,
		Published: time.Now(),
	}
}

// Marshal encodes the event as JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Sink receives scan events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Multi is a Sink that records to every sink it contains.
type Multi []Sink

// Record records e to all sinks and joins their errors.
func (m Multi) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
