package systemd

import (
	"reflect"
	"testing"
)

func recorder(n *Notifier) *[]string {
	var sent []string
	n.send = func(state string) (bool, error) {
		sent = append(sent, state)
		return true, nil
	}
	return &sent
}

func TestNotifierStates(t *testing.T) {
	t.Parallel()
	n := New(true)
	sent := recorder(n)

	_ = n.Ready()
	_ = n.Status("WATCHING")
	_ = n.Status("WATCHING")
	_ = n.Status("RECOVERING: query error:\nboom")
	_ = n.Stopping()

	want := []string{"READY=1", "STATUS=WATCHING", "STATUS=RECOVERING: query error: boom", "STOPPING=1"}
	if !reflect.DeepEqual(*sent, want) {
		t.Fatalf("sent = %q, want %q", *sent, want)
	}
}

func TestDisabledNotifierIsNoop(t *testing.T) {
	t.Parallel()
	n := New(false)
	sent := recorder(n)
	_ = n.Ready()
	_ = n.Status("x")
	if len(*sent) != 0 {
		t.Fatalf("sent = %q, want none", *sent)
	}
	var nilN *Notifier
	if err := nilN.Ready(); err != nil {
		t.Fatalf("nil Ready: %v", err)
	}
	if err := nilN.Status("x"); err != nil {
		t.Fatalf("nil Status: %v", err)
	}
}
