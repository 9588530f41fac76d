package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "debug")
	require.NoError(t, err)

	l.With(map[string]any{"run": "full"}).Warn("convert failed", map[string]any{
		"path":  "/out/a.png",
		"error": errors.New("boom"),
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "convert failed", entry["message"])
	assert.Equal(t, "full", entry["run"])
	assert.Equal(t, "/out/a.png", entry["path"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn")
	require.NoError(t, err)

	l.Info("hidden", nil)
	assert.Zero(t, buf.Len())

	_, err = New(&buf, "loud")
	assert.Error(t, err)
}
