package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, cfg, logger.config)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format must be")
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings("trace", "console")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)

	_, err = FromSettings("loud", "json")
	require.Error(t, err)
}

func TestLogger_ContextAwareMethods(t *testing.T) {
	logger := NewTestLogger()
	ctx := context.Background()

	tests := []struct {
		name  string
		log   func()
		level zapcore.Level
	}{
		{"trace", func() { logger.Trace(ctx, "msg trace") }, TraceLevel},
		{"debug", func() { logger.Debug(ctx, "msg debug") }, zapcore.DebugLevel},
		{"info", func() { logger.Info(ctx, "msg info") }, zapcore.InfoLevel},
		{"warn", func() { logger.Warn(ctx, "msg warn") }, zapcore.WarnLevel},
		{"error", func() { logger.Error(ctx, "msg error") }, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger.Reset()
			tt.log()

			logs := logger.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.level, logs[0].Level)
			assert.Equal(t, "msg "+tt.name, logs[0].Message)
		})
	}
}

func TestLogger_ContextFields(t *testing.T) {
	logger := NewTestLogger()

	ctx := WithSessionID(context.Background(), "0b7c2f9e-1111-4a57-9d7a-3c5b8e0f2a10")
	ctx = WithRequestID(ctx, "req-42")
	ctx = WithAttribution(ctx, "entity-1", "web-demo")

	logger.Info(ctx, "turn handled", zap.String("backend", "openai"))

	logger.AssertField(t, "turn handled", "session.id", "0b7c2f9e-1111-4a57-9d7a-3c5b8e0f2a10")
	logger.AssertField(t, "turn handled", "request.id", "req-42")
	logger.AssertField(t, "turn handled", "entity.id", "entity-1")
	logger.AssertField(t, "turn handled", "process.id", "web-demo")
	logger.AssertField(t, "turn handled", "backend", "openai")
}

func TestWithSessionID_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { WithSessionID(context.Background(), "") })
	assert.Panics(t, func() { WithSessionID(context.Background(), "bad id; drop") })
}

func TestWithRequestID_DropsInvalid(t *testing.T) {
	ctx := WithRequestID(context.Background(), "<script>")
	assert.Empty(t, RequestIDFromContext(ctx))
}

func TestLogger_Named(t *testing.T) {
	logger := NewTestLogger()
	logger.Named("scope").Info(context.Background(), "named entry")

	logs := logger.FilterMessage("named entry").All()
	require.Len(t, logs, 1)
	assert.Equal(t, "scope", logs[0].LoggerName)
}
