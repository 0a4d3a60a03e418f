package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, redact bool) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "json", Redact: redact, Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return logger, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	return entry
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLogger_RedactsByKeyClassification(t *testing.T) {
	logger, buf := newTestLogger(t, true)
	logger.Info("credential rotated",
		"api_key", "sk-abcdefghijklmnop",
		"email", "alice@example.com",
		"tenant_id", "tenant-a",
	)

	entry := decodeLine(t, buf)
	if entry["api_key"] != "***REDACTED***" {
		t.Errorf("api_key = %v, want fully redacted", entry["api_key"])
	}
	if entry["email"] != "alic***" {
		t.Errorf("email = %v, want prefix mask", entry["email"])
	}
	if entry["tenant_id"] != "tenant-a" {
		t.Errorf("tenant_id = %v, want unchanged", entry["tenant_id"])
	}
}

func TestLogger_RedactsValuePatterns(t *testing.T) {
	logger, buf := newTestLogger(t, true)
	logger.Warn("upstream rejected", "detail", "Authorization: Bearer abc.def.ghi")

	entry := decodeLine(t, buf)
	if got := entry["detail"].(string); strings.Contains(got, "abc.def.ghi") {
		t.Errorf("bearer token leaked: %q", got)
	}
}

func TestLogger_RedactsWithAttrs(t *testing.T) {
	logger, buf := newTestLogger(t, true)
	logger.With("password", "hunter2").Info("login")

	entry := decodeLine(t, buf)
	if entry["password"] != "***REDACTED***" {
		t.Errorf("password = %v, want redacted", entry["password"])
	}
}

func TestLogger_NoRedaction(t *testing.T) {
	logger, buf := newTestLogger(t, false)
	logger.Info("raw", "password", "hunter2")

	entry := decodeLine(t, buf)
	if entry["password"] != "hunter2" {
		t.Errorf("password = %v, want unredacted", entry["password"])
	}
}

func TestLogger_ContextFields(t *testing.T) {
	logger, buf := newTestLogger(t, true)
	ctx := WithTenantID(WithRequestID(context.Background(), "req-1"), "tenant-a")
	logger.InfoContext(ctx, "policy check")

	entry := decodeLine(t, buf)
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
	if entry["tenant_id"] != "tenant-a" {
		t.Errorf("tenant_id = %v", entry["tenant_id"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
