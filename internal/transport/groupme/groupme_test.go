package groupme

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	kit "seatwatch/internal/transport"
)

func TestSendTextPostsBotMessage(t *testing.T) {
	t.Parallel()
	var got botMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(Config{BotID: "bot123", URL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.SendText(context.Background(), "Alert: MAC2313 has 2 seats available"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if got.BotID != "bot123" || got.Text != "Alert: MAC2313 has 2 seats available" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSendTextNonAcceptedIsDeliveryError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("{\"meta\":{\"code\":400}}\nbad bot"))
	}))
	defer srv.Close()

	c, err := New(Config{BotID: "bot123", URL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.SendText(context.Background(), "hello")
	var de *kit.DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if de.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", de.Status)
	}
	for _, line := range strings.Split(de.Body, "\n") {
		if !strings.HasPrefix(line, "    ") {
			t.Fatalf("body line not indented: %q", line)
		}
	}
}

func TestNewRequiresBotID(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{BotID: "  "}); err == nil {
		t.Fatal("expected error for empty bot id")
	}
}
