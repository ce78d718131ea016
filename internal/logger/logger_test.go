package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"off", DisabledLevel},
		{"nonsense", InfoLevel},
		{"", InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "input %q", tt.in)
	}
}

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	assert.Equal(t, -4, int(DebugLevel.ToCharmlogLevel()))
	assert.Equal(t, 0, int(InfoLevel.ToCharmlogLevel()))
	assert.Equal(t, 4, int(WarnLevel.ToCharmlogLevel()))
	assert.Equal(t, 8, int(ErrorLevel.ToCharmlogLevel()))
	assert.Equal(t, 1000, int(DisabledLevel.ToCharmlogLevel()))
	assert.Equal(t, 0, int(LogLevel("unknown").ToCharmlogLevel()))
}

func TestNewLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: InfoLevel, Output: &buf, TimeFormat: "15:04:05"})

	l.With("sample", "abc").Info("analysed", "sizes", 7)

	out := buf.String()
	assert.Contains(t, out, "analysed")
	assert.Contains(t, out, "sample")
	assert.Contains(t, out, "abc")
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: WarnLevel, Output: &buf, TimeFormat: "15:04:05"})

	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("shown warn")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warn")
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true, TimeFormat: "15:04:05"})
	l.Info("json message")
	assert.Contains(t, buf.String(), `"msg":"json message"`)
}

func TestFromContext(t *testing.T) {
	expected := Nop()
	ctx := ContextWithLogger(context.Background(), expected)
	assert.Equal(t, expected, FromContext(ctx))

	require.NotNil(t, FromContext(context.Background()))
}
