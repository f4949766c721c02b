package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactedAndPartNames(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.New(slog.NewJSONHandler(&buf, nil)))
	logger.With("scheme", "stealth").Info(context.Background(), "key generated",
		PartNames("public", map[string]string{"B": "02ff", "A": "03aa"}),
		Redacted("private"),
	)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "stealth", rec["scheme"])
	assert.Equal(t, "A,B", rec["public"])
	assert.Equal(t, Placeholder(), rec["private"])
	assert.NotContains(t, buf.String(), "02ff")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestNewSlog(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewSlog(&buf, "json", slog.LevelWarn)
	require.NoError(t, err)
	l.Info("dropped")
	l.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)

	_, err = NewSlog(&buf, "xml", slog.LevelInfo)
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	Discard().With("k", "v").Error(context.Background(), "nothing")
}
