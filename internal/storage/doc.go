// Package storage provides the optional, write-only observation journal.
//
// It records:
//   - every seat observation (course, open seats, whether it changed)
//   - supervisor lifecycle events and notification deliveries (audit)
//
// Nothing is read back at startup: watch state always starts empty.
package storage
