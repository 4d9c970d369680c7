// Package systemd reports service state to systemd via sd_notify. Outside
// systemd (no NOTIFY_SOCKET) every call is a no-op.
package systemd

import (
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"
)

type Notifier struct {
	enabled bool
	send    func(state string) (bool, error)

	mu         sync.Mutex
	lastStatus string
}

// New returns a notifier; enabled=false turns every call into a no-op.
func New(enabled bool) *Notifier {
	return &Notifier{
		enabled: enabled,
		send:    func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
}

func (n *Notifier) notify(state string) error {
	if n == nil || !n.enabled {
		return nil
	}
	_, err := n.send(state)
	return err
}

// Ready signals that startup finished.
func (n *Notifier) Ready() error { return n.notify(daemon.SdNotifyReady) }

// Stopping signals that shutdown began.
func (n *Notifier) Stopping() error { return n.notify(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
// Repeating the current status is skipped.
func (n *Notifier) Status(msg string) error {
	if n == nil {
		return nil
	}
	msg = strings.ReplaceAll(strings.TrimSpace(msg), "\n", " ")
	n.mu.Lock()
	if msg == n.lastStatus {
		n.mu.Unlock()
		return nil
	}
	n.lastStatus = msg
	n.mu.Unlock()
	return n.notify("STATUS=" + msg)
}
