//go:build integration

package clamd

import (
	"bytes"
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevHatRo/clamd-go/internal/testutil"
)

func integrationConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	if addr := os.Getenv("CLAMD_ADDR"); addr != "" {
		host, port, err := net.SplitHostPort(addr)
		require.NoError(t, err)
		cfg.Host = host
		cfg.Port, err = strconv.Atoi(port)
		require.NoError(t, err)
	}
	cfg.Timeout = 30 * time.Second
	return cfg
}

func integrationClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(integrationConfig(t))
	require.NoError(t, err, "failed to create client")
	return client
}

func TestIntegrationPing(t *testing.T) {
	client := integrationClient(t)
	require.NoError(t, client.Ping(context.Background()))
}

func TestIntegrationScanClean(t *testing.T) {
	client := integrationClient(t)

	data := "ok – no malware here"
	result, err := client.Scan(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status, "message %q", result.Message)
	assert.Equal(t, int64(len(data)), result.Size)
	t.Logf("Scan result: status=%s, size=%d, duration=%s", result.Status, result.Size, result.Duration())
}

func TestIntegrationScanEicar(t *testing.T) {
	client := integrationClient(t)

	result, err := client.Scan(context.Background(), bytes.NewReader(testutil.EICAR))
	require.NoError(t, err)
	assert.Equal(t, StatusFound, result.Status)
	assert.Contains(t, result.Message, "Eicar")
	t.Logf("Scan result: status=%s, message=%s", result.Status, result.Message)
}

func TestIntegrationScanEmpty(t *testing.T) {
	client := integrationClient(t)

	result, err := client.Scan(context.Background(), bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, int64(0), result.Size)
}

func TestIntegrationScanInfiniteStream(t *testing.T) {
	client := integrationClient(t)

	result, err := client.Scan(context.Background(), &testutil.InfiniteReader{})
	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "INSTREAM size limit exceeded. ERROR", result.Message)
	assert.Greater(t, result.Size, int64(0))
	t.Logf("Scan result: status=%s, size=%d", result.Status, result.Size)
}
