package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("hello", "household_id", "h1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["household_id"] != "h1" || rec["service"] != "chorely" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "").Debug("shown")
	if !strings.Contains(buf.String(), "msg=shown") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}
