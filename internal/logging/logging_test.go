package logging

import (
	"bytes"
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected LogLevel
	}{
		{"Default is info", map[string]string{}, LevelInfo},
		{"Debug via LOG_LEVEL", map[string]string{"LOG_LEVEL": "debug"}, LevelDebug},
		{"Info via LOG_LEVEL", map[string]string{"LOG_LEVEL": "info"}, LevelInfo},
		{"Warn via LOG_LEVEL", map[string]string{"LOG_LEVEL": "warn"}, LevelWarn},
		{"Warning alias", map[string]string{"LOG_LEVEL": "warning"}, LevelWarn},
		{"Error via LOG_LEVEL", map[string]string{"LOG_LEVEL": "error"}, LevelError},
		{"Case insensitive", map[string]string{"LOG_LEVEL": "DEBUG"}, LevelDebug},
		{"DEBUG flag wins", map[string]string{"DEBUG": "true", "LOG_LEVEL": "error"}, LevelDebug},
		{"LOCAL_FILES_LOG enables verbose", map[string]string{"LOCAL_FILES_LOG": "1"}, LevelDebug},
		{"LOCAL_FILES_LOG false is ignored", map[string]string{"LOCAL_FILES_LOG": "false", "LOG_LEVEL": "warn"}, LevelWarn},
		{"Unknown falls back to info", map[string]string{"LOG_LEVEL": "loud"}, LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLevel(envMap(tt.env)); got != tt.expected {
				t.Errorf("parseLevel() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("Log levels should be in ascending order: %v >= %v", levels[i], levels[i+1])
		}
	}
}

func TestLoggingFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	tests := []struct {
		name string
		fn   func()
	}{
		{"Debug", func() { Debug("test %s %d", "message", 123) }},
		{"Info", func() { Info("test message") }},
		{"Warn", func() { Warn("test message") }},
		{"Error", func() { Error("test message") }},
		{"Printf", func() { Printf("test %s", "message") }},
		{"Println", func() { Println("test", "message", 123) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("%s panicked: %v", tt.name, r)
				}
			}()
			tt.fn()
		})
	}
}

func TestErrorAlwaysWritten(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	Error("store failed: %s", "disk full")

	if !strings.Contains(buf.String(), "store failed: disk full") {
		t.Errorf("expected error line in output, got %q", buf.String())
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	WithFields(map[string]interface{}{"component": "ingest"}).Warn("queue full")

	out := buf.String()
	if !strings.Contains(out, "component=ingest") {
		t.Errorf("expected field in output, got %q", out)
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}
