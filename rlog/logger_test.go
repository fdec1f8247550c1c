package rlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerWritesMessageAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Info("endpoint selected", "endpoint", "https://node-a", "weight", 2)

	out := buf.String()
	if !strings.Contains(out, "endpoint selected") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "endpoint=https://node-a") {
		t.Fatalf("expected endpoint attr in output, got %q", out)
	}
}

func TestLoggerNewAttachesContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf)
	sub := base.New("pool", "ethereum-mainnet")

	sub.Warn("circuit breaker opened", "endpoint", "https://node-b")

	out := buf.String()
	if !strings.Contains(out, "pool=ethereum-mainnet") {
		t.Fatalf("expected sublogger context in output, got %q", out)
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Debug("debug message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	for _, want := range []string{"debug message", "warn message", "error message"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got %q", want, out)
		}
	}
}
