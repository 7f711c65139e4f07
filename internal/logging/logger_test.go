package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for raw, want := range cases {
		got, err := ParseLevel(raw)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q)=%v (%v) want %v", raw, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected unknown level error")
	}
}

func TestNewWritesToDestination(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("info", &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("skipping secret", "reason", "invalid")
	logger.V(1).Info("hidden at info level")
	out := buf.String()
	if !strings.Contains(out, "skipping secret") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if strings.Contains(out, "hidden at info level") {
		t.Fatalf("debug message leaked at info level: %q", out)
	}
}
