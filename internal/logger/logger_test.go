package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLogger_JSONLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := newLogger(buf, "warn", FormatJSON)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	log.Info().Msg("dropped")
	log.Warn().Str("session_id", "abc").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", lines[0], err)
	}
	if entry["message"] != "kept" || entry["session_id"] != "abc" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestNewLogger_ConsoleDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := newLogger(buf, "", "")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %v", log.GetLevel())
	}

	log.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("Expected console output, got %q", buf.String())
	}
}

func TestNewWithConfig_Invalid(t *testing.T) {
	if _, err := NewWithConfig("loud", FormatJSON); err == nil {
		t.Error("Expected error for unknown level")
	}
	if _, err := NewWithConfig("info", "xml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), zerolog.New(buf))

	l := FromContext(ctx, zerolog.Nop())
	l.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_Fallback(t *testing.T) {
	buf := &bytes.Buffer{}
	fallback := zerolog.New(buf).With().Str("component", "dashboard").Logger()

	l := FromContext(context.Background(), fallback)
	l.Info().Msg("no request")

	if !strings.Contains(buf.String(), `"component":"dashboard"`) {
		t.Errorf("Expected fallback logger output, got: %s", buf.String())
	}
}
