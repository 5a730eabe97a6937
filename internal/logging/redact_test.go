package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/memscope/internal/config"
)

func encodeWith(t *testing.T, enc zapcore.Encoder, fields ...zap.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Unix(0, 0),
		Message: "entry",
	}, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestRedactingEncoder_EntryFields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	out := encodeWith(t, enc,
		zap.String("api_key", "sk-abcdefghijklmnopqrstuvwx"),
		zap.String("header", "Bearer abc.def.ghi"),
		zap.String("backend", "openai"),
	)

	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstuvwx")
	assert.NotContains(t, out, "abc.def.ghi")
	assert.Contains(t, out, `"api_key":"[REDACTED]"`)
	assert.Contains(t, out, `"header":"[REDACTED:pattern]"`)
	assert.Contains(t, out, `"backend":"openai"`)
}

func TestRedactingEncoder_ValuePatternOnUnlistedKey(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	out := encodeWith(t, enc, zap.String("prompt", "my key is sk-proj-0123456789abcdefXYZ"))
	assert.Contains(t, out, `"prompt":"[REDACTED:pattern]"`)
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	clone := enc.Clone()
	clone.AddString("token", "abc123")

	out := encodeWith(t, clone)
	assert.Contains(t, out, `"token":"[REDACTED]"`)
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: false})
	require.NoError(t, err)

	out := encodeWith(t, enc, zap.String("api_key", "visible"))
	assert.Contains(t, out, `"api_key":"visible"`)
}

func TestRedactingEncoder_BadPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"("}})
	require.Error(t, err)
}

func TestSecretField(t *testing.T) {
	f := Secret("openai_key", config.Secret("sk-123"))
	assert.Equal(t, "[REDACTED:6]", f.String)
	assert.Equal(t, "[REDACTED:5]", RedactedString("k", "hello").String)
}

func TestEncodeLevel_Trace(t *testing.T) {
	enc := newEncoder("json")
	buf, err := enc.EncodeEntry(zapcore.Entry{Level: TraceLevel, Message: "wire"}, nil)
	require.NoError(t, err)
	defer buf.Free()
	assert.Contains(t, buf.String(), `"level":"trace"`)
}
