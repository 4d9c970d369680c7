// Package watch runs the per-session polling loop: query every tracked course
// through the rate limiter, diff against the last observation and notify on
// change.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"seatwatch/internal/clock"
	"seatwatch/internal/course"
	"seatwatch/internal/failure"
	"seatwatch/internal/ratelimit"
	"seatwatch/internal/storage"
	logx "seatwatch/pkg/logx"
)

// Querier fetches the current sections of one course.
type Querier interface {
	Query(ctx context.Context, c course.Tracked) ([]course.Section, error)
}

// Notifier delivers a notification. It must not return until the message was
// handed to every channel.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

type Config struct {
	Courses []course.Tracked
	// Heartbeat is an optional standard cron expression. When set, a status
	// digest is sent at the first cycle boundary after each scheduled time.
	Heartbeat string
}

type Loop struct {
	courses   []course.Tracked
	limiter   *ratelimit.Limiter
	notify    Notifier
	log       logx.Logger
	store     storage.Store
	clock     clock.Clock
	heartbeat cron.Schedule
}

type Option func(*Loop)

func WithLogger(log logx.Logger) Option { return func(l *Loop) { l.log = log } }
func WithStore(st storage.Store) Option { return func(l *Loop) { l.store = st } }
func WithClock(c clock.Clock) Option    { return func(l *Loop) { l.clock = c } }

func New(cfg Config, limiter *ratelimit.Limiter, n Notifier, opts ...Option) (*Loop, error) {
	if len(cfg.Courses) == 0 {
		return nil, fmt.Errorf("watch: no courses")
	}
	if limiter == nil || n == nil {
		return nil, fmt.Errorf("watch: limiter and notifier are required")
	}
	l := &Loop{
		courses: append([]course.Tracked(nil), cfg.Courses...),
		limiter: limiter,
		notify:  n,
		clock:   clock.Real(),
	}
	for _, o := range opts {
		o(l)
	}
	if l.log.IsZero() {
		l.log = logx.Nop()
	}
	if expr := strings.TrimSpace(cfg.Heartbeat); expr != "" {
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("watch: heartbeat %q: %w", expr, err)
		}
		l.heartbeat = sched
	}
	return l, nil
}

func (l *Loop) Courses() []course.Tracked {
	return append([]course.Tracked(nil), l.courses...)
}

// Run polls with a fresh State until a query fails or ctx is done. It never
// returns nil.
func (l *Loop) Run(ctx context.Context, q Querier, cycleID string) error {
	st := State{}
	var nextBeat time.Time
	if l.heartbeat != nil {
		nextBeat = l.heartbeat.Next(l.clock.Now())
	}
	for pass := 1; ; pass++ {
		if err := l.Cycle(ctx, q, st, cycleID); err != nil {
			return err
		}
		l.log.Trace("watch pass complete", logx.Int("pass", pass))
		if l.heartbeat != nil {
			if now := l.clock.Now(); !now.Before(nextBeat) {
				l.notify.Notify(ctx, Digest(l.courses, st))
				nextBeat = l.heartbeat.Next(now)
			}
		}
	}
}

// Cycle performs one diff-and-notify pass over every course in configuration
// order, mutating st.
func (l *Loop) Cycle(ctx context.Context, q Querier, st State, cycleID string) error {
	for _, c := range l.courses {
		sections, err := ratelimit.Run(ctx, l.limiter, func(ctx context.Context) ([]course.Section, error) {
			return q.Query(ctx, c)
		})
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return failure.Query("query "+c.String(), err)
		}
		seats := course.OpenSeats(sections)
		changed := st.Observe(c, seats)
		l.log.Debug("seats observed",
			logx.String("course", c.String()),
			logx.Int("open_seats", seats),
			logx.Int("sections", len(sections)),
			logx.Bool("changed", changed),
		)
		l.record(ctx, storage.Observation{
			At:        l.clock.Now(),
			CycleID:   cycleID,
			Course:    c.String(),
			OpenSeats: seats,
			Sections:  len(sections),
			Changed:   changed,
		})
		if changed {
			l.notify.Notify(ctx, Alert(c, seats))
		}
	}
	return nil
}

func (l *Loop) record(ctx context.Context, o storage.Observation) {
	if l.store == nil {
		return
	}
	if err := l.store.AppendObservation(ctx, o); err != nil {
		l.log.Warn("observation not recorded", logx.String("course", o.Course), logx.Err(err))
	}
}

// Alert is the change notification text.
func Alert(c course.Tracked, seats int) string {
	return fmt.Sprintf("Alert: %s has %d seats available", c, seats)
}

// Digest summarizes the current state in course order.
func Digest(courses []course.Tracked, st State) string {
	parts := make([]string, 0, len(courses))
	for _, c := range courses {
		if n, ok := st.Last(c); ok {
			parts = append(parts, fmt.Sprintf("%s: %d", c, n))
		} else {
			parts = append(parts, fmt.Sprintf("%s: ?", c))
		}
	}
	return "Status: still watching (" + strings.Join(parts, ", ") + ")"
}
