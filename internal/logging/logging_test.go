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
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, test := range tests {
		if got := ParseLevel(test.in); got != test.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", test.in, got, test.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"text", FormatText},
		{"Console", FormatText},
		{"", FormatJSON},
	}
	for _, test := range tests {
		if got := ParseFormat(test.in); got != test.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", test.in, got, test.want)
		}
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "component", "AuthService")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "kept" || entry["service"] != "starterp" || entry["component"] != "AuthService" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "debug", "text").Debug("hello")

	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text output = %q", buf.String())
	}
}
