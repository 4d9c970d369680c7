// Package supervisor owns the outer restart loop: announce, authenticate,
// watch, and on a recoverable watch failure notify, cool down, discard the
// session and start over.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"seatwatch/internal/clock"
	"seatwatch/internal/course"
	"seatwatch/internal/failure"
	"seatwatch/internal/notifier"
	"seatwatch/internal/storage"
	"seatwatch/internal/watch"
	logx "seatwatch/pkg/logx"
)

const DefaultCooldown = 10 * time.Second

type State string

const (
	StateStarting       State = "STARTING"
	StateAuthenticating State = "AUTHENTICATING"
	StateWatching       State = "WATCHING"
	StateRecovering     State = "RECOVERING"
)

// Session is an authenticated handle to the scheduling service.
type Session interface {
	watch.Querier
	Close() error
}

// Acquirer produces a fresh authenticated session. It may block for as long
// as interactive confirmation takes.
type Acquirer interface {
	Acquire(ctx context.Context) (Session, error)
}

// AcquirerFunc adapts a function to Acquirer.
type AcquirerFunc func(ctx context.Context) (Session, error)

func (f AcquirerFunc) Acquire(ctx context.Context) (Session, error) { return f(ctx) }

// Watcher runs the polling loop against one session until it fails.
type Watcher interface {
	Courses() []course.Tracked
	Run(ctx context.Context, q watch.Querier, cycleID string) error
}

type Config struct {
	Name     string
	Cooldown time.Duration
}

// Snapshot is a point-in-time view of the supervisor, for logs only.
type Snapshot struct {
	State      State     `json:"state"`
	CycleID    string    `json:"cycle_id"`
	Cycles     uint64    `json:"cycles"`
	Failures   uint64    `json:"failures"`
	Panics     uint64    `json:"panics"`
	StartedAt  time.Time `json:"started_at"`
	LastAuthAt time.Time `json:"last_auth_at"`
	LastErrAt  time.Time `json:"last_err_at"`
	LastErr    string    `json:"last_err,omitempty"`

	// Notification history at the last recovery, when the notifier keeps one.
	Notifications int `json:"notifications"`
	Undelivered   int `json:"undelivered"`
}

// historian is implemented by notifiers that remember what they sent.
type historian interface {
	Snapshot() []notifier.HistoryItem
}

type Supervisor struct {
	cfg     Config
	acquire Acquirer
	watcher Watcher
	notify  watch.Notifier

	log    logx.Logger
	clock  clock.Clock
	store  storage.Store
	status func(State, string)
	newID  func() string

	mu   sync.Mutex
	snap Snapshot
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option { return func(s *Supervisor) { s.log = log } }
func WithClock(c clock.Clock) Option    { return func(s *Supervisor) { s.clock = c } }
func WithStore(st storage.Store) Option { return func(s *Supervisor) { s.store = st } }

// WithStatusReporter registers a hook called on every state change.
func WithStatusReporter(fn func(State, string)) Option {
	return func(s *Supervisor) { s.status = fn }
}

// WithIDGenerator overrides the cycle id source (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(s *Supervisor) { s.newID = fn }
}

func New(cfg Config, acquire Acquirer, watcher Watcher, notify watch.Notifier, opts ...Option) *Supervisor {
	if cfg.Name == "" {
		cfg.Name = "SeatWatch"
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	s := &Supervisor{
		cfg:     cfg,
		acquire: acquire,
		watcher: watcher,
		notify:  notify,
		clock:   clock.Real(),
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Run loops until authentication fails, a non-recoverable error escapes the
// watch loop, or ctx is done. It never returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	s.snap.StartedAt = s.clock.Now()
	s.mu.Unlock()
	for {
		if err := s.cycle(ctx); err != nil {
			return err
		}
	}
}

// cycle runs one STARTING..RECOVERING pass. A nil return means restart.
func (s *Supervisor) cycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := s.newID()
	log := s.log.With(logx.String("cycle_id", id))

	s.setState(StateStarting, id, "")
	s.audit(ctx, id, "cycle.start", "", nil)
	s.notify.Notify(ctx, fmt.Sprintf("%s is starting up... (Targets: %s)", s.cfg.Name, course.List(s.watcher.Courses())))
	s.notify.Notify(ctx, "Prepare to Authenticate: You will be prompted to authenticate yourself with FSU via Duo 2FA.")

	s.setState(StateAuthenticating, id, "")
	sess, err := s.acquire.Acquire(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = failure.Auth("acquire session", err)
		log.Error("authentication failed", logx.Err(err))
		s.audit(ctx, id, "auth.failed", "", err)
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("session close failed", logx.Err(cerr))
		}
		s.audit(context.WithoutCancel(ctx), id, "session.closed", "", nil)
	}()

	s.mu.Lock()
	s.snap.LastAuthAt = s.clock.Now()
	s.mu.Unlock()
	s.audit(ctx, id, "auth.ok", "", nil)
	s.notify.Notify(ctx, "Authentication Successful")

	s.setState(StateWatching, id, "")
	werr := s.watch(ctx, sess, id)
	if !failure.Recoverable(werr) {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		log.Error("watch loop stopped", logx.Err(werr))
		return werr
	}

	s.setState(StateRecovering, id, werr.Error())
	s.noteFailure(werr)
	s.audit(ctx, id, "watch.failed", "", werr)
	s.notify.Notify(ctx, FailureMessage(werr))
	s.noteHistory()
	log.Error("watch loop failed; restarting",
		logx.Err(werr),
		logx.Duration("cooldown", s.cfg.Cooldown),
		logx.Any("supervisor", s.Snapshot()),
	)
	return s.clock.Sleep(ctx, s.cfg.Cooldown)
}

// watch runs the watcher with panic capture. A panic becomes a recoverable
// error.
func (s *Supervisor) watch(ctx context.Context, sess Session, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.snap.Panics++
			s.mu.Unlock()
			s.log.Error("watch loop panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	err = s.watcher.Run(ctx, sess, id)
	if err == nil {
		err = errors.New("watch loop exited")
	}
	return err
}

// FailureMessage is the notification text for a recoverable failure.
func FailureMessage(err error) string {
	return fmt.Sprintf("An error occurred while attempting to refresh the course population count. Specifically, %v. As a result, the system will restart in a moment.", err)
}

func (s *Supervisor) setState(st State, id, detail string) {
	s.mu.Lock()
	s.snap.State = st
	if st == StateStarting {
		s.snap.CycleID = id
		s.snap.Cycles++
	}
	s.mu.Unlock()
	s.log.Debug("supervisor state", logx.String("state", string(st)), logx.String("cycle_id", id))
	if s.status != nil {
		s.status(st, detail)
	}
}

func (s *Supervisor) noteFailure(err error) {
	s.mu.Lock()
	s.snap.Failures++
	s.snap.LastErr = err.Error()
	s.snap.LastErrAt = s.clock.Now()
	s.mu.Unlock()
}

func (s *Supervisor) noteHistory() {
	h, ok := s.notify.(historian)
	if !ok {
		return
	}
	items := h.Snapshot()
	undelivered := 0
	for _, it := range items {
		if it.Delivered == 0 && it.Failed > 0 {
			undelivered++
		}
	}
	s.mu.Lock()
	s.snap.Notifications = len(items)
	s.snap.Undelivered = undelivered
	s.mu.Unlock()
}

func (s *Supervisor) audit(ctx context.Context, id, event, detail string, err error) {
	if s.store == nil {
		return
	}
	e := storage.AuditEntry{At: s.clock.Now(), CycleID: id, Event: event, Detail: detail}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := s.store.AppendAudit(ctx, e); aerr != nil {
		s.log.Debug("audit append failed", logx.String("event", event), logx.Err(aerr))
	}
}
