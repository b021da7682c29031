package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerFormatsFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Console: &buf, Level: "debug"})

	log.Info("switching provider", map[string]interface{}{"to": "groq", "from": "google"})

	line := buf.String()
	if !strings.Contains(line, "[info ] switching provider | from=google, to=groq") {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Console: &buf, Level: "warn"})

	log.Debug("hidden", nil)
	log.Info("hidden", nil)
	log.Error("patch failed", errors.New("disk full"), nil)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug/info should be filtered: %q", out)
	}
	if !strings.Contains(out, "error=disk full") {
		t.Fatalf("error field missing: %q", out)
	}
}

func TestLoggerWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kernhell.log")
	log := New(Options{Console: &bytes.Buffer{}, File: path})
	log.Warn("quota persist failed", nil)
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "quota persist failed") {
		t.Fatalf("log file missing entry: %q", data)
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("short"); got != "****" {
		t.Errorf("MaskSecret(short) = %q", got)
	}
	if got := MaskSecret("AIzaSyA1234567890wxyz"); got != "AIza********wxyz" {
		t.Errorf("MaskSecret = %q", got)
	}
}
