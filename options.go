package clamd

import (
	"github.com/sirupsen/logrus"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithDialer sets the Dialer used to open sessions.
// By default a zero net.Dialer is used; the configured timeout applies either way.
func WithDialer(d Dialer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets the logger for connection and reply events.
// By default nothing is logged.
func WithLogger(l logrus.Ext1FieldLogger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
