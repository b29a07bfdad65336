package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	logger, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelDebug, Format: FormatJSON}, &buf)
	require.NoError(t, err)

	logger.WithField("scan_id", "abc").Debug("connecting to clamd")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "connecting to clamd", entry["msg"])
	assert.Equal(t, "abc", entry["scan_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelWarn, Format: FormatText}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Level: "loud", Format: FormatText}.Validate())
	assert.Error(t, Config{Level: LevelInfo, Format: "xml"}.Validate())

	_, err := New(Config{Level: LevelInfo, Format: "xml"}, nil)
	assert.Error(t, err)
}
