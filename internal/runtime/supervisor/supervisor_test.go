package supervisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"seatwatch/internal/clock"
	"seatwatch/internal/course"
	"seatwatch/internal/failure"
	"seatwatch/internal/notifier"
	"seatwatch/internal/ratelimit"
	"seatwatch/internal/watch"
)

var errBadCredentials = errors.New("credentials rejected")

type fakeSession struct {
	queries int
	failAt  int
	closed  int
	onClose func()
}

func (f *fakeSession) Query(_ context.Context, _ course.Tracked) ([]course.Section, error) {
	f.queries++
	if f.queries == f.failAt {
		return nil, errors.New("page did not load")
	}
	return []course.Section{{Number: "0001", OpenSeats: 2}}, nil
}

func (f *fakeSession) Close() error {
	f.closed++
	if f.onClose != nil {
		f.onClose()
	}
	return nil
}

// scriptedAcquirer hands out the given sessions in order, then fails.
type scriptedAcquirer struct {
	sessions []*fakeSession
	calls    int
}

func (a *scriptedAcquirer) Acquire(context.Context) (Session, error) {
	a.calls++
	if len(a.sessions) == 0 {
		return nil, errBadCredentials
	}
	s := a.sessions[0]
	a.sessions = a.sessions[1:]
	return s, nil
}

type recordingNotifier struct{ msgs []string }

func (r *recordingNotifier) Notify(_ context.Context, msg string) { r.msgs = append(r.msgs, msg) }

func newLoop(t *testing.T, fc *clock.Fake, n watch.Notifier) *watch.Loop {
	t.Helper()
	l, err := watch.New(
		watch.Config{Courses: []course.Tracked{{Subject: "MAC", Code: "2313"}, {Subject: "COP", Code: "3330"}}},
		ratelimit.New(5*time.Second, ratelimit.WithClock(fc)),
		n,
		watch.WithClock(fc),
	)
	if err != nil {
		t.Fatalf("watch.New: %v", err)
	}
	return l
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "cycle-" + string(rune('0'+n))
	}
}

func TestRecoversFromQueryFailureAndReauthenticates(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC))
	n := &recordingNotifier{}
	sess := &fakeSession{failAt: 2}
	acq := &scriptedAcquirer{sessions: []*fakeSession{sess}}
	var (
		sleepsAtClose []time.Duration
		callsAtClose  int
	)
	sess.onClose = func() {
		sleepsAtClose = fc.Sleeps()
		callsAtClose = acq.calls
	}
	var states []State
	sup := New(Config{Name: "SeatWatch"}, acq, newLoop(t, fc, n), n,
		WithClock(fc),
		WithIDGenerator(sequentialIDs()),
		WithStatusReporter(func(s State, _ string) { states = append(states, s) }),
	)

	err := sup.Run(context.Background())
	if !errors.Is(err, errBadCredentials) || !failure.Is(err, failure.KindAuth) {
		t.Fatalf("Run error = %v, want auth failure", err)
	}
	if acq.calls != 2 {
		t.Fatalf("acquisitions = %d, want 2", acq.calls)
	}
	if sess.closed != 1 {
		t.Fatalf("session closed %d times, want 1", sess.closed)
	}
	// The session is released after the cooldown and before re-authenticating.
	if len(sleepsAtClose) == 0 || sleepsAtClose[len(sleepsAtClose)-1] != DefaultCooldown {
		t.Fatalf("sleeps at close = %v, want cooldown last", sleepsAtClose)
	}
	if callsAtClose != 1 {
		t.Fatalf("acquisitions at close = %d, want 1", callsAtClose)
	}

	var cooldowns int
	for _, d := range fc.Sleeps() {
		if d == DefaultCooldown {
			cooldowns++
		}
	}
	if cooldowns != 1 {
		t.Fatalf("cooldown sleeps = %d (all: %v), want 1", cooldowns, fc.Sleeps())
	}

	want := []string{
		"SeatWatch is starting up... (Targets: [MAC2313, COP3330])",
		"Prepare to Authenticate: You will be prompted to authenticate yourself with FSU via Duo 2FA.",
		"Authentication Successful",
		"Alert: MAC2313 has 2 seats available",
		"", // failure message, checked below
		"SeatWatch is starting up... (Targets: [MAC2313, COP3330])",
		"Prepare to Authenticate: You will be prompted to authenticate yourself with FSU via Duo 2FA.",
	}
	if len(n.msgs) != len(want) {
		t.Fatalf("notifications = %q", n.msgs)
	}
	for i, w := range want {
		if w != "" && n.msgs[i] != w {
			t.Fatalf("notification %d = %q, want %q", i, n.msgs[i], w)
		}
	}
	fail := n.msgs[4]
	if !strings.HasPrefix(fail, "An error occurred while attempting to refresh the course population count. Specifically, ") ||
		!strings.Contains(fail, "page did not load") ||
		!strings.HasSuffix(fail, ". As a result, the system will restart in a moment.") {
		t.Fatalf("failure notification = %q", fail)
	}

	wantStates := []State{StateStarting, StateAuthenticating, StateWatching, StateRecovering, StateStarting, StateAuthenticating}
	if len(states) != len(wantStates) {
		t.Fatalf("states = %v, want %v", states, wantStates)
	}
	for i := range wantStates {
		if states[i] != wantStates[i] {
			t.Fatalf("states = %v, want %v", states, wantStates)
		}
	}

	snap := sup.Snapshot()
	if snap.Cycles != 2 || snap.Failures != 1 || !strings.Contains(snap.LastErr, "page did not load") {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

// historyNotifier records like recordingNotifier and reports every message
// after the first as undelivered.
type historyNotifier struct{ recordingNotifier }

func (h *historyNotifier) Snapshot() []notifier.HistoryItem {
	out := make([]notifier.HistoryItem, len(h.msgs))
	for i, m := range h.msgs {
		out[i] = notifier.HistoryItem{Text: m, Delivered: 1}
		if i > 0 {
			out[i] = notifier.HistoryItem{Text: m, Failed: 1}
		}
	}
	return out
}

func TestRecoverySnapshotCountsNotificationHistory(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(time.Unix(0, 0))
	n := &historyNotifier{}
	acq := &scriptedAcquirer{sessions: []*fakeSession{{failAt: 1}}}
	sup := New(Config{}, acq, newLoop(t, fc, n), n, WithClock(fc))

	if err := sup.Run(context.Background()); !failure.Is(err, failure.KindAuth) {
		t.Fatalf("Run error = %v", err)
	}
	// startup, advisory, auth ok, failure notice.
	snap := sup.Snapshot()
	if snap.Notifications != 4 || snap.Undelivered != 3 {
		t.Fatalf("notifications=%d undelivered=%d, want 4 and 3", snap.Notifications, snap.Undelivered)
	}
}

func TestRecoverySnapshotWithoutHistory(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(time.Unix(0, 0))
	n := &recordingNotifier{}
	acq := &scriptedAcquirer{sessions: []*fakeSession{{failAt: 1}}}
	sup := New(Config{}, acq, newLoop(t, fc, n), n, WithClock(fc))

	_ = sup.Run(context.Background())
	if snap := sup.Snapshot(); snap.Notifications != 0 || snap.Undelivered != 0 {
		t.Fatalf("unexpected history counts: %+v", snap)
	}
}

type panickingWatcher struct{ runs int }

func (p *panickingWatcher) Courses() []course.Tracked {
	return []course.Tracked{{Subject: "MAC", Code: "2313"}}
}

func (p *panickingWatcher) Run(context.Context, watch.Querier, string) error {
	p.runs++
	panic("nil section list")
}

func TestRecoversFromWatchPanic(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(time.Unix(0, 0))
	n := &recordingNotifier{}
	sess := &fakeSession{}
	acq := &scriptedAcquirer{sessions: []*fakeSession{sess}}
	w := &panickingWatcher{}
	sup := New(Config{Cooldown: 3 * time.Second}, acq, w, n, WithClock(fc))

	if err := sup.Run(context.Background()); !failure.Is(err, failure.KindAuth) {
		t.Fatalf("Run error = %v", err)
	}
	if w.runs != 1 || sess.closed != 1 {
		t.Fatalf("runs=%d closed=%d, want 1 and 1", w.runs, sess.closed)
	}
	if got := fc.Sleeps(); len(got) != 1 || got[0] != 3*time.Second {
		t.Fatalf("sleeps = %v, want [3s]", got)
	}
	if snap := sup.Snapshot(); snap.Panics != 1 {
		t.Fatalf("panics = %d, want 1", snap.Panics)
	}
}

type blockingWatcher struct{ cancel context.CancelFunc }

func (b *blockingWatcher) Courses() []course.Tracked { return nil }

func (b *blockingWatcher) Run(ctx context.Context, _ watch.Querier, _ string) error {
	b.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func TestCancellationStopsWithoutFailureNotice(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fc := clock.NewFake(time.Unix(0, 0))
	n := &recordingNotifier{}
	sess := &fakeSession{}
	acq := &scriptedAcquirer{sessions: []*fakeSession{sess}}
	sup := New(Config{}, acq, &blockingWatcher{cancel: cancel}, n, WithClock(fc))

	if err := sup.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if sess.closed != 1 {
		t.Fatalf("session closed %d times, want 1", sess.closed)
	}
	for _, m := range n.msgs {
		if strings.HasPrefix(m, "An error occurred") {
			t.Fatalf("unexpected failure notice on shutdown: %q", m)
		}
	}
	if len(fc.Sleeps()) != 0 {
		t.Fatalf("unexpected cooldown on shutdown: %v", fc.Sleeps())
	}
}

func TestFailureMessage(t *testing.T) {
	t.Parallel()
	got := FailureMessage(errors.New("timeout"))
	want := "An error occurred while attempting to refresh the course population count. Specifically, timeout. As a result, the system will restart in a moment."
	if got != want {
		t.Fatalf("FailureMessage = %q", got)
	}
}
