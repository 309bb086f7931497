package log

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriter_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("production", &buf)

	logger.Info().Str("user_id", "u1").Msg("login succeeded")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["env"] != "production" || entry["user_id"] != "u1" || entry["message"] != "login succeeded" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewWithWriter_DevelopmentIsConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("development", &buf)

	logger.Debug().Msg("hello")

	if buf.Len() == 0 {
		t.Fatal("expected debug output in development")
	}
	if json.Valid(buf.Bytes()) {
		t.Errorf("expected console output, got JSON %q", buf.String())
	}
}
