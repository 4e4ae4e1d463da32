package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestInit_ValidLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"error", "error"},
		{"upper", "DEBUG"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := InitWriter(&buf, tt.level); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if Get() == nil {
				t.Fatal("Get() returned nil")
			}
		})
	}
}

func TestInit_InvalidLevel(t *testing.T) {
	if err := Init("verbose"); err == nil {
		t.Error("expected error for invalid log level, got nil")
	}
}

func TestGet_BeforeInit(t *testing.T) {
	globalLogger = nil

	if Get() != slog.Default() {
		t.Error("Get() should return slog.Default() when not initialized")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWriter(&buf, "warn"); err != nil {
		t.Fatal(err)
	}
	Get().Info("hidden")
	Get().Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "key=value") {
		t.Errorf("warn record missing: %q", out)
	}
}
