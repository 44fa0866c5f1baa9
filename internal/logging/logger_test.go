package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"info":    zapcore.InfoLevel,
		" DEBUG ": zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for input, expected := range cases {
		level, err := ParseLevel(input)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", input, err)
		}
		if level != expected {
			t.Fatalf("level %q: expected %s, got %s", input, expected, level)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected unknown level to be rejected")
	}
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	logger, err := NewLogger("warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info to be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn to be enabled")
	}

	if _, err := NewLogger("loud"); err == nil {
		t.Fatalf("expected invalid level to fail")
	}
}
