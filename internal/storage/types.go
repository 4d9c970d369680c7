package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Observation is one seat query result.
type Observation struct {
	At        time.Time `json:"at"`
	CycleID   string    `json:"cycle_id"`
	Course    string    `json:"course"`
	OpenSeats int       `json:"open_seats"`
	Sections  int       `json:"sections"`
	Changed   bool      `json:"changed"`
}

// AuditEntry records a lifecycle event (cycle start, login, failure, notification).
// Keep it compact and schema-stable.
type AuditEntry struct {
	At      time.Time `json:"at"`
	CycleID string    `json:"cycle_id,omitempty"`
	Event   string    `json:"event"`
	Detail  string    `json:"detail,omitempty"`
	Error   string    `json:"err,omitempty"`
}
