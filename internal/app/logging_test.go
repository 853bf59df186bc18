package app

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LogLevelWarn, Output: &buf, Prefix: "peek"})

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("below-level lines leaked:\n%s", out)
	}
	if !strings.Contains(out, "warn line") || !strings.Contains(out, "error line") {
		t.Errorf("at-level lines missing:\n%s", out)
	}
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LogLevelDebug, Output: &buf, Prefix: "peek"})

	logger.Info("hit breakpoint #%d", 3)

	out := buf.String()
	if !strings.Contains(out, "[INFO] peek: hit breakpoint #3") {
		t.Errorf("unexpected line format:\n%s", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("log line should end with a newline")
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LogLevelDebug, Output: &buf, Prefix: "peek"})

	logger.WithComponent("breakpoint").Info("ready")

	if out := buf.String(); !strings.Contains(out, "{component=breakpoint}") {
		t.Errorf("missing component field:\n%s", out)
	}
}

func TestLogger_WithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LogLevelDebug, Output: &buf, Prefix: "peek"})

	_ = logger.WithField("module", "app")
	logger.Info("plain")

	if out := buf.String(); strings.Contains(out, "module=app") {
		t.Errorf("parent logger picked up a child field:\n%s", out)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LogLevelError, Output: &buf, Prefix: "peek"})

	logger.Info("before")
	logger.SetLevel(LogLevelInfo)
	logger.Info("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Errorf("line logged below level:\n%s", out)
	}
	if !strings.Contains(out, "after") {
		t.Errorf("line missing after SetLevel:\n%s", out)
	}
}

func TestLogger_Disable(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LogLevelDebug, Output: &buf, Prefix: "peek"})

	logger.Disable()
	logger.Error("silenced")

	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote output: %q", buf.String())
	}
}

func TestNullLogger(t *testing.T) {
	// Must not panic despite the zero output writer.
	NullLogger.Info("dropped")
	NullLogger.WithComponent("x").Error("dropped")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"DEBUG", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"bogus", LogLevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
