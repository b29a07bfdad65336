package clamd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 3310, cfg.Port)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, 2048, cfg.ChunkLength)
	require.NoError(t, cfg.Validate())
}

func TestConfigAddress(t *testing.T) {
	assert.Equal(t, "localhost:3310", DefaultConfig().Address())
	assert.Equal(t, "[::1]:3310", Config{Host: "::1", Port: 3310}.Address())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty host", func(c *Config) { c.Host = "" }},
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"zero chunk length", func(c *Config) { c.ChunkLength = 0 }},
		{"negative chunk length", func(c *Config) { c.ChunkLength = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}
