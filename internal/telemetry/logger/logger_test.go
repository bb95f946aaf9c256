package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format string
		check  func(string) bool
	}{
		{"json", "json", func(s string) bool { return strings.HasPrefix(s, "{") }},
		{"text", "text", func(s string) bool { return strings.Contains(s, "msg=hello") }},
		{"console is text", "console", func(s string) bool { return strings.Contains(s, "msg=hello") }},
		{"unknown falls back to json", "xml", func(s string) bool { return strings.HasPrefix(s, "{") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(Config{Level: "info", Format: tt.format, Output: &buf})
			l.Info("hello")
			if !tt.check(buf.String()) {
				t.Errorf("unexpected output %q", buf.String())
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})
	defer SetLevel("info")

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}

	SetLevel("debug")
	if GetLevel() != "debug" {
		t.Errorf("GetLevel = %q", GetLevel())
	}
	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("debug not logged after SetLevel")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if ValidLevel("bogus") || !ValidLevel("warn") {
		t.Error("ValidLevel mismatch")
	}
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Info("configured",
		"seal_key", "hunter2",
		"key", "mirrorsync-theme",
		slog.Group("auth", "password", "pw", "user", "ada"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["seal_key"] != redactedValue {
		t.Errorf("seal_key = %v", entry["seal_key"])
	}
	if entry["key"] != "mirrorsync-theme" {
		t.Errorf("storage key was redacted: %v", entry["key"])
	}
	group := entry["auth"].(map[string]any)
	if group["password"] != redactedValue || group["user"] != "ada" {
		t.Errorf("group = %v", group)
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for key, want := range map[string]bool{
		"seal_key":     true,
		"SealSecret":   true,
		"api_token":    true,
		"key":          false,
		"physical_key": false,
		"prefix":       false,
	} {
		if got := IsSensitiveKey(key); got != want {
			t.Errorf("IsSensitiveKey(%q) = %v", key, got)
		}
	}
}

func TestContext(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("empty context should give the default logger")
	}
	l := New(DefaultConfig())
	ctx := WithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("FromContext did not return the stored logger")
	}
}
