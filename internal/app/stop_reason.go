package app

import (
	"context"
	"errors"

	"seatwatch/internal/failure"
)

// StopReason records why Run returned, for the final log line.
type StopReason string

const (
	StopUnknown     StopReason = "unknown"
	StopSignal      StopReason = "signal"
	StopAuthFailure StopReason = "auth_failure"
	StopFatalError  StopReason = "fatal_error"
)

func stopReasonOf(err error) StopReason {
	switch {
	case err == nil:
		return StopUnknown
	case errors.Is(err, context.Canceled):
		return StopSignal
	case failure.Is(err, failure.KindAuth):
		return StopAuthFailure
	default:
		return StopFatalError
	}
}
