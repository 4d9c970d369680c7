// Package failure classifies errors crossing the watch/supervise boundary.
//
// The supervisor never decides by call site which errors to survive: it asks
// Recoverable(err). Query failures are recoverable (cool down, re-authenticate),
// authentication and configuration failures are fatal.
package failure

import (
	"context"
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindQuery
	KindDelivery
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "authentication"
	case KindQuery:
		return "query"
	case KindDelivery:
		return "delivery"
	case KindConfig:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Op names the failing operation
// (e.g. "login", "query MAC2313").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	// Keep the innermost classification.
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == kind {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Auth(op string, err error) error     { return wrap(KindAuth, op, err) }
func Query(op string, err error) error    { return wrap(KindQuery, op, err) }
func Delivery(op string, err error) error { return wrap(KindDelivery, op, err) }
func Config(op string, err error) error   { return wrap(KindConfig, op, err) }

// KindOf returns the outermost classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == kind {
			return true
		}
		err = fe.Err
	}
	return false
}

// Recoverable reports whether the supervisor should cool down and restart
// instead of propagating err. Context cancellation is never recoverable: it is
// the shutdown path.
func Recoverable(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindAuth, KindConfig:
		return false
	default:
		// Anything escaping the watch loop unclassified is treated like a
		// query failure.
		return true
	}
}
