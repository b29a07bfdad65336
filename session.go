package clamd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// aLongTimeAgo is an already expired deadline used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// session owns a single connection for the duration of one Scan or Ping.
// It is never reused.
type session struct {
	ctx     context.Context
	conn    net.Conn
	timeout time.Duration
	stop    func() bool

	closeOnce sync.Once
	closeErr  error

	// deadlineMu orders deadline updates against cancellation, so an
	// extended deadline never replaces the expired one set on cancel.
	deadlineMu sync.Mutex
	cancelled  bool

	// Reply watcher. reply and readErr are owned by watch until done is closed.
	armed   atomic.Bool
	arrived chan struct{}
	done    chan struct{}
	reply   []byte
	readErr error
}

// openSession dials the daemon and starts watching the connection for reply bytes.
// The caller must Close the returned session.
func openSession(ctx context.Context, d Dialer, cfg Config) (*session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	conn, err := d.DialContext(dialCtx, "tcp", cfg.Address())
	if err != nil {
		return nil, classifyTransportError(ctx, "failed to connect to clamd", err)
	}

	s := &session{
		ctx:     ctx,
		conn:    conn,
		timeout: cfg.Timeout,
		arrived: make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.stop = context.AfterFunc(ctx, func() {
		s.deadlineMu.Lock()
		defer s.deadlineMu.Unlock()
		s.cancelled = true
		_ = conn.SetDeadline(aLongTimeAgo)
	})
	go s.watch()

	return s, nil
}

// watch reads the connection until EOF or error. arrived is closed as soon
// as the first reply byte is seen.
func (s *session) watch() {
	defer close(s.done)

	var buf bytes.Buffer
	chunk := make([]byte, 512)
	for {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			if buf.Len() == 0 {
				close(s.arrived)
			}
			buf.Write(chunk[:n])
			if s.armed.Load() {
				_ = s.extendDeadline(s.conn.SetReadDeadline)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.readErr = err
			}
			break
		}
	}
	s.reply = buf.Bytes()
}

// replied reports, without blocking, whether the daemon has started to reply.
func (s *session) replied() bool {
	select {
	case <-s.arrived:
		return true
	default:
		return false
	}
}

// extendDeadline moves a connection deadline to now plus the timeout unless
// the session's context has been cancelled.
func (s *session) extendDeadline(set func(time.Time) error) error {
	s.deadlineMu.Lock()
	defer s.deadlineMu.Unlock()
	if s.cancelled {
		return nil
	}
	return set(time.Now().Add(s.timeout))
}

// awaitReply applies the timeout to the remaining reads and waits until the
// daemon has finished its reply. Any read error other than EOF fails the
// reply, even after some bytes arrived.
func (s *session) awaitReply() ([]byte, error) {
	reply, err := s.awaitAny()
	if err != nil {
		return nil, err
	}
	if s.readErr != nil {
		return nil, classifyTransportError(s.ctx, "failed to read reply from clamd", s.readErr)
	}
	return reply, nil
}

// awaitEarlyReply is awaitReply for a reply sent before the upload finished.
// A daemon that rejects a stream closes the connection with unread data
// pending, so a reset after the reply is expected and the received bytes are
// returned. A read error is only returned when no reply bytes were received.
func (s *session) awaitEarlyReply() ([]byte, error) {
	reply, err := s.awaitAny()
	if err != nil {
		return nil, err
	}
	if s.readErr != nil && len(reply) == 0 {
		return nil, classifyTransportError(s.ctx, "failed to read reply from clamd", s.readErr)
	}
	return reply, nil
}

// awaitAny arms the read deadline and waits for the watcher to finish.
func (s *session) awaitAny() ([]byte, error) {
	s.armed.Store(true)
	if err := s.extendDeadline(s.conn.SetReadDeadline); err != nil {
		return nil, classifyTransportError(s.ctx, "failed to set read deadline", err)
	}
	<-s.done
	return s.reply, nil
}

func (s *session) write(p []byte) error {
	if err := s.ctx.Err(); err != nil {
		return classifyTransportError(s.ctx, "failed to write to clamd", err)
	}
	if err := s.extendDeadline(s.conn.SetWriteDeadline); err != nil {
		return classifyTransportError(s.ctx, "failed to set write deadline", err)
	}
	if _, err := s.conn.Write(p); err != nil {
		return classifyTransportError(s.ctx, "failed to write to clamd", err)
	}
	return nil
}

// Close closes the connection and waits for the reply watcher to exit.
// It is safe to call more than once; only the first call closes the connection.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.stop()
		s.closeErr = s.conn.Close()
		<-s.done
	})
	return s.closeErr
}

// classifyTransportError maps socket errors to client error types.
func classifyTransportError(ctx context.Context, msg string, err error) error {
	if err == nil {
		return nil
	}

	// Context cancellation or deadline exceeded
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.Canceled) {
			return NewTimeoutError(msg+": operation canceled", ctxErr)
		}
		return NewTimeoutError(msg+": deadline exceeded", ctxErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(msg+": timed out", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewConnectionError("DNS resolution failed", err)
	}

	return NewConnectionError(msg, err)
}
