package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLogger_LevelsAndFields(t *testing.T) {
	t.Setenv(EnvLevel, "")
	var buf bytes.Buffer
	l := New(&buf, "info").With("component", "session")

	l.Debug("hidden")
	l.Info("ingested", "documents", 3, "err", errors.New("partial"))

	recs := lines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "info", recs[0]["level"])
	assert.Equal(t, "ingested", recs[0]["msg"])
	assert.Equal(t, "session", recs[0]["component"])
	assert.Equal(t, float64(3), recs[0]["documents"])
	assert.Equal(t, "partial", recs[0]["err"])
}

func TestLogger_EnvOverridesLevel(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	var buf bytes.Buffer
	New(&buf, "error").Debug("visible")
	assert.Len(t, lines(t, &buf), 1)
}

func TestLogger_MasksSecrets(t *testing.T) {
	t.Setenv(EnvLevel, "")
	var buf bytes.Buffer
	New(&buf, "").Info("request",
		"api_key", "sk-abcdefghijklmnop",
		"auth", "Bearer abcdefghijkl",
		"value", "sk-1234567890",
		"path", "/api/ask")

	rec := lines(t, &buf)[0]
	assert.Equal(t, "sk-a***mnop", rec["api_key"])
	assert.Equal(t, "Bearer abcd***ijkl", rec["auth"])
	assert.Equal(t, "sk-1***7890", rec["value"])
	assert.Equal(t, "/api/ask", rec["path"])
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("WARN")
	assert.True(t, ok)
	assert.Equal(t, Warn, l)
	_, ok = ParseLevel("loud")
	assert.False(t, ok)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().With("a", "b").Error("dropped") })
}
