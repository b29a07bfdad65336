package clamd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client scans data with a clamd daemon over the INSTREAM protocol.
// Every call opens its own connection, so a Client is safe for concurrent
// use from multiple goroutines. A Client never changes after creation; to
// reconfigure, create a new one (see Service).
type Client struct {
	cfg    Config
	dialer Dialer
	logger logrus.Ext1FieldLogger
}

// NewClient creates a client for the daemon described by cfg.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}

	for _, opt := range opts {
		opt(c)
	}

	if c.dialer == nil {
		c.dialer = &net.Dialer{}
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}

	return c, nil
}

// Config returns the configuration the client was created with.
func (c *Client) Config() Config {
	return c.cfg
}

// Ping sends PING and checks that the daemon answers with exactly PONG.
// An unexpected answer is reported as a protocol error.
func (c *Client) Ping(ctx context.Context) error {
	c.logger.WithField("addr", c.cfg.Address()).Info("pinging clamd")

	s, err := openSession(ctx, c.dialer, c.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.write([]byte(cmdPing)); err != nil {
		return err
	}

	reply, err := s.awaitReply()
	if err != nil {
		return err
	}
	if !bytes.Equal(reply, []byte(replyPong)) {
		return NewProtocolError(fmt.Sprintf("unexpected reply to PING: %q", reply), nil)
	}
	return nil
}

// Scan streams r to the daemon and returns the classified reply.
//
// Daemon answers never produce an error: a reply sent before the upload
// finished yields a result with StatusError, and an unparseable reply yields
// StatusUnknown. Errors are returned only for connection, timeout and read
// failures.
func (c *Client) Scan(ctx context.Context, r io.Reader) (*ScanResult, error) {
	log := c.logger.WithFields(logrus.Fields{
		"scan_id": uuid.NewString(),
		"addr":    c.cfg.Address(),
	})
	log.Info("connecting to clamd for scanning")

	started := time.Now()
	s, err := openSession(ctx, c.dialer, c.cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Close() }()

	if err := s.write([]byte(cmdInstream)); err != nil {
		return nil, err
	}

	out, err := upload(s, r, c.cfg.ChunkLength, log)
	if err != nil {
		return nil, err
	}
	log.Infof("total bytes sent: %d", out.sent)

	reply := out.reply
	if !out.aborted {
		if reply, err = s.awaitReply(); err != nil {
			return nil, err
		}
	}

	status, message := ClassifyReply(reply)
	log.Infof("reply message from clamd: '%s'", message)
	if out.aborted {
		// an early reply is never a successful scan, whatever it says
		log.WithField("message", message).Error("clamd terminated INSTREAM prematurely")
		status = StatusError
	}

	return newScanResult(status, message, started, out.sent), nil
}
