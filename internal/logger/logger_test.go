package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := NewWriter(&buf, Config{Level: "warn", Format: "json"})
	require.NoError(t, err)

	l.Info().Msg("dropped")
	l.Warn().Str("symbol", "ETHUSDT").Msg("kept")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "kept", rec["message"])
	assert.Equal(t, "ETHUSDT", rec["symbol"])
	assert.Equal(t, "warn", rec["level"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trader.log")
	l, err := New(Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	l.Debug().Msg("hello")
	assert.FileExists(t, path)
}
