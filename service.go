package clamd

import (
	"context"
	"io"
	"sync/atomic"
)

// Service holds the current Client and swaps it when the configuration changes.
// Calls already in flight keep the client they started with.
type Service struct {
	current atomic.Pointer[Client]
	opts    []ClientOption
}

// NewService creates an unconfigured service. opts are applied to every client it creates.
func NewService(opts ...ClientOption) *Service {
	return &Service{opts: opts}
}

// Configure validates cfg, makes it the configuration for subsequent scans
// and pings the daemon. The ping result is only logged; an unreachable daemon
// does not fail the configuration.
func (s *Service) Configure(ctx context.Context, cfg Config) error {
	c, err := NewClient(cfg, s.opts...)
	if err != nil {
		return err
	}
	s.current.Store(c)

	log := c.logger.WithField("addr", cfg.Address())
	if err := c.Ping(ctx); err != nil {
		if IsProtocolError(err) {
			log.Errorf("clamd replied with unknown message: %v", err)
		} else {
			log.Errorf("pinging clamd failed: %v", err)
		}
		return nil
	}
	log.Info("clamd replied with PONG")
	return nil
}

// Client returns the current client, or nil before the first Configure.
func (s *Service) Client() *Client {
	return s.current.Load()
}

// Scan scans r with the current client.
func (s *Service) Scan(ctx context.Context, r io.Reader) (*ScanResult, error) {
	c := s.current.Load()
	if c == nil {
		return nil, NewValidationError("service is not configured", nil)
	}
	return c.Scan(ctx, r)
}
