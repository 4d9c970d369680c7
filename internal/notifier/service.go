package notifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"seatwatch/internal/failure"
	"seatwatch/internal/storage"
	kit "seatwatch/internal/transport"
	logx "seatwatch/pkg/logx"
)

const lineTimeFormat = "2006-01-02T15:04:05.000"

// Service formats and fans out notifications. It is safe for concurrent use,
// but callers in this repo use it from a single goroutine.
type Service struct {
	mu sync.Mutex

	cfg      Config
	log      logx.Logger
	channels []kit.Sender
	store    storage.Store
	limiter  *rate.Limiter
	now      func() time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, channels []kit.Sender, log logx.Logger, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:      log,
		channels: append([]kit.Sender(nil), channels...),
		store:    store,
		now:      time.Now,
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Name == "" {
		cfg.Name = "SeatWatch"
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	s.cfg = cfg
	if cfg.RatePerSec <= 0 {
		s.limiter = nil
		return
	}
	burst := int(math.Ceil(cfg.RatePerSec))
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
}

// Format renders the log/relay line for msg.
func Format(name string, at time.Time, msg string) string {
	return fmt.Sprintf("[%s] [%s]: %s", name, at.Format(lineTimeFormat), msg)
}

// Truncate cuts s to at most maxChars characters (runes).
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	if len(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}

// Notify logs msg and delivers it to every channel. It never fails.
func (s *Service) Notify(ctx context.Context, msg string) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	chans := s.channels
	st := s.store
	at := s.now()
	s.mu.Unlock()

	line := Format(cfg.Name, at, msg)
	s.log.Info(line)
	body := Truncate(line, cfg.MaxLength)

	item := HistoryItem{At: at, Text: body}
	for _, ch := range chans {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				// Shutdown in progress; the line is already in the log.
				return
			}
		}
		cctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		err := ch.SendText(cctx, body)
		cancel()
		if err == nil {
			item.Delivered++
			s.audit(ctx, st, "notify.sent", ch.Name(), nil)
			continue
		}
		item.Failed++
		err = failure.Delivery("send via "+ch.Name(), err)
		fields := []logx.Field{logx.String("channel", ch.Name()), logx.Err(err)}
		if body := failureBody(err); body != "" {
			fields = append(fields, logx.String("body", body))
		}
		s.log.Warn("Failed to send SMS message:", fields...)
		s.audit(ctx, st, "notify.failed", ch.Name(), err)
	}
	s.appendHistory(item)
}

// failureBody renders a rejected response body for the log: on its own line,
// indented one level deeper than the sender already indented it.
func failureBody(err error) string {
	var de *kit.DeliveryError
	if !errors.As(err, &de) || de.Body == "" {
		return ""
	}
	return "\n" + kit.Indent(de.Body, "    ")
}

func (s *Service) audit(ctx context.Context, st storage.Store, event, channel string, err error) {
	if st == nil {
		return
	}
	e := storage.AuditEntry{At: s.now(), Event: event, Detail: channel}
	if err != nil {
		e.Error = err.Error()
	}
	cctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if aerr := st.AppendAudit(cctx, e); aerr != nil {
		s.log.Debug("audit append failed", logx.Err(aerr))
	}
}

func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(it HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > 300 {
		s.history = s.history[len(s.history)-300:]
	}
	s.hmu.Unlock()
}
