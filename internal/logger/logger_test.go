package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopLogger(t *testing.T) {
	logger := &NoopLogger{}

	// Should not panic
	logger.Debug("test")
	logger.Info("test")
	logger.Warn("test")
	logger.Error("test")

	// With arguments
	logger.Debug("test", "key", "value")
	logger.Info("test", "key", "value")
	logger.Warn("test", "key", "value")
	logger.Error("test", "key", "value")
}

func TestSlogAdapter(t *testing.T) {
	tests := []struct {
		name       string
		logFunc    func(Logger, string, ...any)
		message    string
		args       []any
		wantLevel  string
		wantMsg    string
		wantFields map[string]string
	}{
		{
			name:      "Debug level",
			logFunc:   func(l Logger, msg string, args ...any) { l.Debug(msg, args...) },
			message:   "debug message",
			args:      []any{"key", "value"},
			wantLevel: "DEBUG",
			wantMsg:   "debug message",
			wantFields: map[string]string{
				"key": "value",
			},
		},
		{
			name:      "Info level",
			logFunc:   func(l Logger, msg string, args ...any) { l.Info(msg, args...) },
			message:   "info message",
			args:      []any{"status", "active"},
			wantLevel: "INFO",
			wantMsg:   "info message",
			wantFields: map[string]string{
				"status": "active",
			},
		},
		{
			name:      "Warn level",
			logFunc:   func(l Logger, msg string, args ...any) { l.Warn(msg, args...) },
			message:   "warning message",
			args:      []any{"code", "123"},
			wantLevel: "WARN",
			wantMsg:   "warning message",
			wantFields: map[string]string{
				"code": "123",
			},
		},
		{
			name:      "Error level",
			logFunc:   func(l Logger, msg string, args ...any) { l.Error(msg, args...) },
			message:   "error message",
			args:      []any{"error", "connection failed"},
			wantLevel: "ERROR",
			wantMsg:   "error message",
			wantFields: map[string]string{
				"error": "connection failed",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})
			slogger := slog.New(handler)
			logger := NewSlogAdapter(slogger)

			tt.logFunc(logger, tt.message, tt.args...)

			output := buf.String()
			assert.Contains(t, output, tt.wantLevel)
			assert.Contains(t, output, tt.wantMsg)
			for key, value := range tt.wantFields {
				// slog quotes string values
				assert.Contains(t, output, key+"=")
				assert.Contains(t, output, value)
			}
		})
	}
}

func TestSlogAdapterJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slogger := slog.New(handler)
	logger := NewSlogAdapter(slogger)

	logger.Info("command compiled",
		"sql", "SELECT `a0`.`id` AS `id` FROM `users` AS `a0` WHERE (`a0`.`id` = ?)",
		"duration_ms", 15,
		"params", "[id=1]")

	output := buf.String()
	assert.Contains(t, output, `"msg":"command compiled"`)
	assert.Contains(t, output, "\"sql\":\"SELECT `a0`.`id` AS `id` FROM `users` AS `a0` WHERE (`a0`.`id` = ?)\"")
	assert.Contains(t, output, `"duration_ms":15`)
	assert.Contains(t, output, `"params":"[id=1]"`)
}

func TestSlogAdapterMultipleFields(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, nil)
	slogger := slog.New(handler)
	logger := NewSlogAdapter(slogger)

	logger.Info("complex log",
		"string", "value",
		"int", 42,
		"bool", true,
		"nil", nil)

	output := buf.String()
	assert.Contains(t, output, "string=value")
	assert.Contains(t, output, "int=42")
	assert.Contains(t, output, "bool=true")
	assert.Contains(t, output, "nil=<nil>")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{" INFO ", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn", true)
	assert.NoError(t, err)

	l.Info("dropped")
	l.Warn("extraction stage retried", "stage", "columns")

	output := buf.String()
	assert.NotContains(t, output, "dropped")
	assert.Contains(t, output, `"stage":"columns"`)

	_, err = New(&buf, "loud", false)
	assert.Error(t, err)
}

func BenchmarkNoopLogger(b *testing.B) {
	logger := &NoopLogger{}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		logger.Info("command compiled",
			"sql", "SELECT * FROM users",
			"duration_ms", 15,
			"dialect", "mysql")
	}
}

func BenchmarkSlogAdapter(b *testing.B) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, nil)
	slogger := slog.New(handler)
	logger := NewSlogAdapter(slogger)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		logger.Info("command compiled",
			"sql", "SELECT * FROM users",
			"duration_ms", 15,
			"dialect", "mysql")
	}
}
