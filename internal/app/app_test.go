package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"seatwatch/internal/config"
	"seatwatch/internal/failure"
)

const testConfig = `
name: SeatWatch
credentials:
  username: abc123
  password: pw
term:
  year: 2024
  semester: Spring
courses: [MAC2313, COP3330]
groupme:
  bot_id: bot
logging:
  level: error
  console: true
storage:
  driver: file
  path: %s
systemd:
  disabled: true
`

func TestNewAppBuildsFromConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(testConfig, filepath.Join(dir, "journal"))
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	a, err := NewApp(p)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer a.close()

	s := a.Settings()
	if len(s.Courses) != 2 || s.Courses[0].String() != "MAC2313" {
		t.Fatalf("courses = %v", s.Courses)
	}
	if a.store == nil {
		t.Fatal("file storage should be enabled")
	}
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(p, []byte(`{"courses": []}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewApp(p)
	if !failure.Is(err, failure.KindConfig) {
		t.Fatalf("NewApp error = %v, want config failure", err)
	}
	if _, err := NewApp(filepath.Join(t.TempDir(), "absent.yaml")); !failure.Is(err, failure.KindConfig) {
		t.Fatalf("missing file error = %v, want config failure", err)
	}
}

func TestStopReasonOf(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want StopReason
	}{
		{nil, StopUnknown},
		{context.Canceled, StopSignal},
		{fmt.Errorf("sleep: %w", context.Canceled), StopSignal},
		{failure.Auth("sign in", errors.New("bad password")), StopAuthFailure},
		{failure.Config("load", errors.New("boom")), StopFatalError},
	}
	for _, tc := range cases {
		if got := stopReasonOf(tc.err); got != tc.want {
			t.Fatalf("stopReasonOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestApplyReloadsSwapsLogging(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(fmt.Sprintf(testConfig, filepath.Join(dir, "journal"))), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	a, err := NewApp(p)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer a.close()

	next := *a.cfgm.Get()
	next.Logging.Level = "debug"

	ctx, cancel := context.WithCancel(context.Background())
	sub := make(chan *config.Config, 1)
	done := make(chan struct{})
	go func() {
		a.applyReloads(ctx, sub)
		close(done)
	}()
	sub <- &next

	deadline := time.Now().Add(5 * time.Second)
	for a.logs.Config().Level != "debug" {
		if time.Now().After(deadline) {
			t.Fatalf("logging level = %q, want debug", a.logs.Config().Level)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}
