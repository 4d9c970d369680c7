// Package transport defines the outbound notification channel contract shared
// by the GroupMe and Telegram relays.
package transport

import (
	"context"
	"fmt"
	"strings"
)

// Sender delivers a plain-text message to a human-facing channel.
type Sender interface {
	Name() string
	SendText(ctx context.Context, text string) error
}

// DeliveryError reports a message the remote channel did not acknowledge.
type DeliveryError struct {
	Channel string
	Status  int    // HTTP status when known, 0 otherwise
	Body    string // response body, already indented for log output
}

func (e *DeliveryError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: message not acknowledged", e.Channel)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Channel, e.Status)
}

// Indent prefixes every line of s with prefix.
func Indent(s, prefix string) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return prefix
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
