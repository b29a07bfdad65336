package report

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject scan events are published on.
const DefaultSubject = "clamd.scan.results"

// publisher is the part of *nats.Conn used by NATSPublisher.
type publisher interface {
	Publish(subj string, data []byte) error
}

// NATSPublisher publishes scan events as JSON messages.
type NATSPublisher struct {
	conn    publisher
	subject string
}

// NewNATSPublisher creates a publisher on nc. An empty subject selects DefaultSubject.
func NewNATSPublisher(nc *nats.Conn, subject string) *NATSPublisher {
	return newNATSPublisher(nc, subject)
}

func newNATSPublisher(conn publisher, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// Record publishes e.
func (p *NATSPublisher) Record(_ context.Context, e Event) error {
	data, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event %s on %s: %w", e.ID, p.subject, err)
	}
	return nil
}
