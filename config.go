package clamd

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"time"
)

const (
	defaultHost        = "localhost"
	defaultPort        = 3310
	defaultTimeout     = time.Second
	defaultChunkLength = 2048
)

// Config holds the connection settings for one client.
// A Config is copied into the Client and never changes afterwards.
type Config struct {
	// Host is the clamd host name or IP address.
	Host string `mapstructure:"host" json:"host"`
	// Port is the clamd TCP port.
	Port int `mapstructure:"port" json:"port"`
	// Timeout bounds connecting and every read and write on the connection.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	// ChunkLength is the maximum number of payload bytes per INSTREAM chunk.
	ChunkLength int `mapstructure:"chunk_length" json:"chunk_length"`
}

// DefaultConfig returns the configuration for a local clamd on port 3310.
func DefaultConfig() Config {
	return Config{
		Host:        defaultHost,
		Port:        defaultPort,
		Timeout:     defaultTimeout,
		ChunkLength: defaultChunkLength,
	}
}

// Address returns the host:port dial address.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the configuration and returns a validation error for the first invalid field.
func (c Config) Validate() error {
	if c.Host == "" {
		return NewValidationError("host must not be empty", nil)
	}
	if c.Port <= 0 || c.Port > math.MaxUint16 {
		return NewValidationError(fmt.Sprintf("port out of range: %d", c.Port), nil)
	}
	if c.Timeout <= 0 {
		return NewValidationError(fmt.Sprintf("timeout must be positive: %s", c.Timeout), nil)
	}
	// the chunk length travels as an unsigned 32-bit prefix
	if c.ChunkLength <= 0 || int64(c.ChunkLength) > math.MaxInt32 {
		return NewValidationError(fmt.Sprintf("chunk length out of range: %d", c.ChunkLength), nil)
	}
	return nil
}
