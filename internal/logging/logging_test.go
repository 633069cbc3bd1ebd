package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "api", "json", "info")

	logger.Info("campaign send finished", "campaign_id", "cmp_1")
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "api", rec["service"])
	assert.Equal(t, "cmp_1", rec["campaign_id"])
}

func TestNewTextAndDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "recorder", "TEXT", "debug")
	logger.Debug("applied", "kind", "sent")

	out := buf.String()
	assert.Contains(t, out, "service=recorder")
	assert.Contains(t, out, "kind=sent")
	assert.Same(t, logger, slog.Default())
}

func TestNewWarnsOnUnknownSettings(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "api", "xml", "loud")
	assert.Contains(t, buf.String(), "unknown log format")
	assert.Contains(t, buf.String(), "unknown log level")
}
