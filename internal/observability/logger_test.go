package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jmylchreest/soundrelay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level string, buf *bytes.Buffer) *slog.Logger {
	return NewLoggerWithWriter(config.LoggingConfig{Level: level, Format: "json"}, buf)
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)
	logger.Info("test message", slog.String("key", "value"))

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, `"key":"value"`)

	var parsed map[string]any
	err := json.Unmarshal([]byte(output), &parsed)
	require.NoError(t, err)
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{
		Level:  "info",
		Format: "text",
	}

	logger := NewLoggerWithWriter(cfg, &buf)
	logger.Info("test message", slog.String("key", "value"))

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "key=value")
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		logLevel    slog.Level
		shouldLog   bool
	}{
		{"debug logs at debug level", "debug", slog.LevelDebug, true},
		{"debug logs at info level", "debug", slog.LevelInfo, true},
		{"info does not log debug", "info", slog.LevelDebug, false},
		{"info logs at info level", "info", slog.LevelInfo, true},
		{"warn does not log info", "warn", slog.LevelInfo, false},
		{"warn logs at warn level", "warn", slog.LevelWarn, true},
		{"error does not log warn", "error", slog.LevelWarn, false},
		{"error logs at error level", "error", slog.LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newTestLogger(tt.configLevel, &buf)
			logger.Log(context.Background(), tt.logLevel, "test")

			if tt.shouldLog {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestNewLogger_AddSource(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{
		Level:     "info",
		Format:    "json",
		AddSource: true,
	}

	logger := NewLoggerWithWriter(cfg, &buf)
	logger.Info("test message")

	output := buf.String()
	assert.Contains(t, output, `"source"`)
	assert.Contains(t, output, "logger_test.go")
}

func TestNewLogger_CustomTimeFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		TimeFormat: "2006-01-02",
	}

	logger := NewLoggerWithWriter(cfg, &buf)
	logger.Info("test message")

	today := time.Now().Format("2006-01-02")
	assert.Contains(t, buf.String(), `"time":"`+today+`"`)
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	WithRequestID(logger, "req-123").Info("test")

	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	WithComponent(logger, "registrar").Info("test")

	assert.Contains(t, buf.String(), `"component":"registrar"`)
}

func TestWithOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	WithOperation(logger, "stream").Info("test")

	assert.Contains(t, buf.String(), `"operation":"stream"`)
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	WithError(logger, errors.New("something went wrong")).Info("test")

	assert.Contains(t, buf.String(), `"error":"something went wrong"`)
}

func TestWithError_Nil(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	WithError(logger, nil).Info("test")

	assert.NotContains(t, buf.String(), `"error"`)
}

func TestContextWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	ctx := ContextWithLogger(context.Background(), logger)
	LoggerFromContext(ctx).Info("from context")

	assert.Contains(t, buf.String(), "from context")
}

func TestLoggerFromContext_Default(t *testing.T) {
	logger := LoggerFromContext(context.Background())
	assert.NotNil(t, logger)
}

func TestContextWithRequestID(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-789")
	assert.Equal(t, "req-789", RequestIDFromContext(ctx))
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestTimedOperationWithError_Success(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	var err error
	done := TimedOperationWithError(context.Background(), logger, "success_op", &err)
	done()

	output := buf.String()
	assert.Contains(t, output, "operation started")
	assert.Contains(t, output, "operation completed")
	assert.Contains(t, output, "success_op")
	assert.NotContains(t, output, "operation failed")
}

func TestTimedOperationWithError_Failure(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	var err error
	done := TimedOperationWithError(context.Background(), logger, "failure_op", &err)
	err = errors.New("disk full")
	done()

	output := buf.String()
	assert.Contains(t, output, "operation failed")
	assert.Contains(t, output, "disk full")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestTraceLevelDisplay(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("trace", &buf)

	logger.Log(context.Background(), LevelTrace, "trace message")

	output := buf.String()
	assert.Contains(t, output, "trace message")
	assert.Contains(t, output, `"level":"TRACE"`)
	assert.NotContains(t, output, "DEBUG-4")
}

func TestTraceLevelFiltering(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		shouldLog   bool
	}{
		{"trace logs at trace level", "trace", true},
		{"debug drops trace", "debug", false},
		{"info drops trace", "info", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newTestLogger(tt.configLevel, &buf)

			logger.Log(context.Background(), LevelTrace, "trace test")

			if tt.shouldLog {
				assert.Contains(t, buf.String(), "trace test")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestChainedWith(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	enriched := WithComponent(
		WithRequestID(
			WithOperation(logger, "download"),
			"req-chain",
		),
		"delivery",
	)
	enriched.Info("chained test")

	output := buf.String()
	assert.Contains(t, output, `"operation":"download"`)
	assert.Contains(t, output, `"request_id":"req-chain"`)
	assert.Contains(t, output, `"component":"delivery"`)
}

func TestSensitiveFieldRedaction(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		value     string
	}{
		{"password", "password", "secret123"},
		{"secret", "secret", "topsecret"},
		{"secret capitalized", "Secret", "TopSecret"},
		{"token", "token", "jwt-token-abc"},
		{"jwt", "jwt", "eyJhbGciOiJIUzI1NiJ9.payload.sig"},
		{"authorization", "authorization", "Bearer xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newTestLogger("info", &buf)

			logger.Info("test message", slog.String(tt.fieldName, tt.value))

			output := buf.String()
			assert.Contains(t, output, "test message")
			assert.NotContains(t, output, tt.value)
		})
	}
}

func TestSensitiveFieldRedaction_Group(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	logger.Info("test with group",
		slog.Group("signing",
			slog.String("username", "admin"),
			slog.String("secret", "secret123"),
		),
	)

	output := buf.String()
	assert.Contains(t, output, "admin")
	assert.NotContains(t, output, "secret123")
}

func TestNonSensitiveDataNotRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	logger.Info("test message",
		slog.String("username", "john"),
		slog.String("path", "/ext/stream"),
		slog.Int("bytes", 42),
	)

	output := buf.String()
	assert.Contains(t, output, "john")
	assert.Contains(t, output, "/ext/stream")
	assert.Contains(t, output, "42")
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "signed stream url",
			input:    "/ext/stream?id=01J&player=5&jwt=eyJ.abc.def",
			expected: "/ext/stream?id=01J&player=5&jwt=" + RedactedValue,
		},
		{
			name:     "token first",
			input:    "http://example.com/api?token=abc123&user=admin",
			expected: "http://example.com/api?token=" + RedactedValue + "&user=admin",
		},
		{
			name:     "case insensitive",
			input:    "/api?PASSWORD=MySecret&user=test",
			expected: "/api?PASSWORD=" + RedactedValue + "&user=test",
		},
		{
			name:     "nothing sensitive",
			input:    "/rest/stream?id=3&maxBitRate=128&format=mp3",
			expected: "/rest/stream?id=3&maxBitRate=128&format=mp3",
		},
		{
			name:     "not a query parameter",
			input:    "tokenizer=fast",
			expected: "tokenizer=fast",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RedactURL(tt.input))
		})
	}
}

func TestURLAttributeRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger("info", &buf)

	logger.Info("request completed", slog.String("url", "/ext/hls?id=7&jwt=eyJ.payload.signature"))

	output := buf.String()
	assert.NotContains(t, output, "eyJ.payload.signature")
	assert.Contains(t, output, "jwt="+RedactedValue)
	assert.Contains(t, output, "id=7")
}
