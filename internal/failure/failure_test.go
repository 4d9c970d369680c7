package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRecoverable(t *testing.T) {
	t.Parallel()
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "query", err: Query("query MAC2313", base), want: true},
		{name: "unclassified", err: base, want: true},
		{name: "auth", err: Auth("login", base), want: false},
		{name: "config", err: Config("load", base), want: false},
		{name: "canceled", err: Query("query", context.Canceled), want: false},
		{name: "wrapped auth", err: fmt.Errorf("cycle 3: %w", Auth("login", base)), want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Recoverable(tt.err); got != tt.want {
				t.Fatalf("Recoverable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrapKeepsMessageAndChain(t *testing.T) {
	t.Parallel()
	base := errors.New("no such element: pre")
	err := Query("query MAC2313", base)
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to reach the cause")
	}
	if got, want := err.Error(), "query error: query MAC2313: no such element: pre"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if again := Query("outer", err); again != err {
		t.Fatal("re-wrapping with the same kind should be a no-op")
	}
	if !Is(Delivery("send", err), KindQuery) {
		t.Fatal("expected inner kind to be visible through Is")
	}
	if KindOf(nil) != KindUnknown || Query("x", nil) != nil {
		t.Fatal("nil handling")
	}
}
