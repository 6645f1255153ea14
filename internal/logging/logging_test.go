package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("trip reconciled", "trip_id", "trip-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "trip reconciled", line["msg"])
	assert.Equal(t, "reconciler", line["service"])
	assert.Equal(t, "trip-1", line["trip_id"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "TEXT").Debug("grouped", "groups", 3)
	assert.Contains(t, buf.String(), "groups=3")
	assert.Contains(t, buf.String(), "service=reconciler")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
