package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARNING ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.raw, zerolog.InfoLevel); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if ValidLevel("loud") {
		t.Fatal("expected loud to be rejected")
	}
	if !ValidLevel("") || !ValidLevel("trace") {
		t.Fatal("expected empty and trace to be accepted")
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	// Must not panic.
	l.Info("hello", String("k", "v"))
}

func TestWriterLoggerFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := newWriter(&buf, "debug").With(String("comp", "test"))
	l.Warn("seat query failed", Err(errors.New("boom")), Int("attempt", 2))

	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if m["comp"] != "test" || m["message"] != "seat query failed" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if m["attempt"] != float64(2) {
		t.Fatalf("attempt = %v, want 2", m["attempt"])
	}
	if _, ok := m["caller"]; !ok {
		t.Fatalf("expected caller field: %v", m)
	}
}

func TestStackFieldSkipsBlank(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := newWriter(&buf, "info")
	l.Error("watch loop panicked", Stack("goroutine 1 [running]:"))
	l.Error("no stack", Stack("  \n"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[0], `"stack":"goroutine 1 [running]:"`) {
		t.Fatalf("missing stack: %s", lines[0])
	}
	if strings.Contains(lines[1], `"stack"`) {
		t.Fatalf("blank stack should be omitted: %s", lines[1])
	}
}

func TestServiceConfigTracksApply(t *testing.T) {
	svc, _ := New(Config{Level: "info", Console: true})
	defer svc.Close()
	next := Config{Level: "debug", Console: true}
	svc.Apply(next)
	if got := svc.Config(); got != next {
		t.Fatalf("Config = %+v, want %+v", got, next)
	}
}

func TestServiceFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seatwatch.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()

	log.Debug("hidden")
	log.Info("visible")
	_ = svc.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "hidden") {
		t.Fatalf("debug line should be filtered: %q", s)
	}
	if !strings.Contains(s, `"message":"visible"`) {
		t.Fatalf("expected JSON info line, got %q", s)
	}
}
