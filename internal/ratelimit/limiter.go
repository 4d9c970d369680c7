// Package ratelimit spaces out successive actions.
//
// Unlike a token bucket, the spacing is measured from the moment the previous
// action finished, so a slow action never lets the next one start early.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"seatwatch/internal/clock"
)

// Limiter guarantees at least Interval between the end of one action and the
// start of the next one run through it. The zero interval disables spacing.
type Limiter struct {
	interval time.Duration
	clock    clock.Clock

	mu      sync.Mutex
	last    time.Time
	hasLast bool
}

type Option func(*Limiter)

func WithClock(c clock.Clock) Option {
	return func(l *Limiter) {
		if c != nil {
			l.clock = c
		}
	}
}

func New(interval time.Duration, opts ...Option) *Limiter {
	if interval < 0 {
		interval = 0
	}
	l := &Limiter{interval: interval, clock: clock.Real()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Remaining returns how long the next action would have to wait now.
func (l *Limiter) Remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remainingLocked()
}

func (l *Limiter) remainingLocked() time.Duration {
	if !l.hasLast {
		return 0
	}
	d := l.interval - l.clock.Now().Sub(l.last)
	if d < 0 {
		return 0
	}
	return d
}

func (l *Limiter) release() {
	l.mu.Lock()
	l.last = l.clock.Now()
	l.hasLast = true
	l.mu.Unlock()
}

// Run waits out the remaining delay, runs action and records its completion
// time on every path (error and panic included). The action's result and
// error are returned unchanged. If ctx ends during the wait the action is not
// run and ctx's error is returned.
func Run[T any](ctx context.Context, l *Limiter, action func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := l.clock.Sleep(ctx, l.Remaining()); err != nil {
		return zero, err
	}
	defer l.release()
	return action(ctx)
}

