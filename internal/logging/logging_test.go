package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "migration_id", "20240101_000000__init")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "shown", entry["msg"])
	require.Equal(t, "20240101_000000__init", entry["migration_id"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "", "").Info("batch complete", "batch", 2)
	require.Contains(t, buf.String(), "msg=\"batch complete\" batch=2")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
