package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"seatwatch/internal/collegescheduler"
	"seatwatch/internal/course"
	"seatwatch/internal/failure"
	"seatwatch/internal/notifier"
	"seatwatch/internal/storage"
	"seatwatch/internal/transport/groupme"
	"seatwatch/internal/transport/telegram"
	logx "seatwatch/pkg/logx"
)

const (
	DefaultName     = "SeatWatch"
	DefaultInterval = 5 * time.Second
	DefaultCooldown = 10 * time.Second
)

// Settings is the validated, immutable view of Config used to build the
// process. It is computed once at startup.
type Settings struct {
	Name    string
	Courses []course.Tracked

	Scheduler collegescheduler.Config

	Interval  time.Duration
	Cooldown  time.Duration
	Heartbeat string

	Notifier notifier.Config
	GroupMe  *groupme.Config
	Telegram *telegram.Config

	Logging logx.Config
	Storage storage.Config
	Systemd bool
}

// Validate checks cfg and applies defaults. Every problem is reported, not
// just the first; the result is a configuration failure.
func Validate(cfg *Config) (*Settings, error) {
	if cfg == nil {
		return nil, failure.Config("validate", errors.New("config is nil"))
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string, def time.Duration) time.Duration {
		d, err := parseDuration(path, raw, def)
		add(err)
		return d
	}

	s := &Settings{
		Name:    strings.TrimSpace(cfg.Name),
		Systemd: !cfg.Systemd.Disabled,
	}
	if s.Name == "" {
		s.Name = DefaultName
	}

	// courses
	if len(cfg.Courses) == 0 {
		add(errors.New("courses: at least one course is required"))
	}
	seen := make(map[course.Tracked]bool, len(cfg.Courses))
	for i, raw := range cfg.Courses {
		c, err := course.Parse(raw)
		if err != nil {
			add(fmt.Errorf("courses[%d]: %w", i, err))
			continue
		}
		if seen[c] {
			add(fmt.Errorf("courses[%d]: duplicate course %s", i, c))
			continue
		}
		seen[c] = true
		s.Courses = append(s.Courses, c)
	}

	// scheduler session
	if strings.TrimSpace(cfg.Credentials.Username) == "" || cfg.Credentials.Password == "" {
		add(errors.New("credentials: username and password are required"))
	}
	if cfg.Term.Year < 2000 || cfg.Term.Year > 2100 {
		add(fmt.Errorf("term.year: %d out of range", cfg.Term.Year))
	}
	semester := strings.TrimSpace(cfg.Term.Semester)
	if semester == "" {
		add(errors.New("term.semester: required (e.g. Spring, Summer, Fall)"))
	}
	s.Scheduler = collegescheduler.Config{
		BaseURL:      strings.TrimSpace(cfg.Scheduler.BaseURL),
		Username:     strings.TrimSpace(cfg.Credentials.Username),
		Password:     cfg.Credentials.Password,
		Term:         collegescheduler.Term{Year: cfg.Term.Year, Semester: semester},
		Headless:     cfg.Scheduler.Headless,
		ExecPath:     strings.TrimSpace(cfg.Scheduler.ExecPath),
		MFATimeout:   dur("scheduler.mfa_timeout", cfg.Scheduler.MFATimeout, collegescheduler.DefaultMFATimeout),
		LoginTimeout: dur("scheduler.login_timeout", cfg.Scheduler.LoginTimeout, collegescheduler.DefaultLoginTimeout),
		QueryTimeout: dur("scheduler.query_timeout", cfg.Scheduler.QueryTimeout, collegescheduler.DefaultQueryTimeout),
	}

	// watch
	s.Interval = dur("watch.interval", cfg.Watch.Interval, DefaultInterval)
	s.Cooldown = dur("watch.cooldown", cfg.Watch.Cooldown, DefaultCooldown)
	s.Heartbeat = strings.TrimSpace(cfg.Watch.Heartbeat)
	if s.Heartbeat != "" {
		if _, err := cron.ParseStandard(s.Heartbeat); err != nil {
			add(fmt.Errorf("watch.heartbeat: %w", err))
		}
	}

	// notifier + channels
	if cfg.Notifier.RatePerSec < 0 {
		add(errors.New("notifier.rate_per_sec: must be >= 0"))
	}
	if cfg.Notifier.MaxLength < 0 || cfg.Notifier.MaxLength > notifier.DefaultMaxLength {
		add(fmt.Errorf("notifier.max_length: must be between 0 and %d", notifier.DefaultMaxLength))
	}
	s.Notifier = notifier.Config{
		Name:        s.Name,
		MaxLength:   cfg.Notifier.MaxLength,
		RatePerSec:  cfg.Notifier.RatePerSec,
		SendTimeout: dur("notifier.send_timeout", cfg.Notifier.SendTimeout, 15*time.Second),
	}
	if g := cfg.GroupMe; g != nil {
		if strings.TrimSpace(g.BotID) == "" {
			add(errors.New("groupme.bot_id: required"))
		}
		s.GroupMe = &groupme.Config{
			BotID:   strings.TrimSpace(g.BotID),
			URL:     strings.TrimSpace(g.URL),
			Timeout: dur("groupme.timeout", g.Timeout, 0),
		}
	}
	if tg := cfg.Telegram; tg != nil {
		if strings.TrimSpace(tg.Token) == "" {
			add(errors.New("telegram.token: required"))
		}
		if tg.ChatID == 0 {
			add(errors.New("telegram.chat_id: required"))
		}
		s.Telegram = &telegram.Config{
			Token:    strings.TrimSpace(tg.Token),
			ChatID:   tg.ChatID,
			ThreadID: tg.ThreadID,
			APIURL:   strings.TrimSpace(tg.APIURL),
			Timeout:  dur("telegram.timeout", tg.Timeout, 0),
		}
	}
	if s.GroupMe == nil && s.Telegram == nil {
		add(errors.New("notification channel: configure groupme and/or telegram"))
	}

	// logging
	add(validateLogging(cfg.Logging))
	s.Logging = LoggingSettings(cfg.Logging)

	// storage
	if st := cfg.Storage; st != nil {
		driver := strings.ToLower(strings.TrimSpace(st.Driver))
		switch driver {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(st.Path) == "" {
				add(errors.New("storage.path: required"))
			}
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", st.Driver))
		}
		s.Storage = storage.Config{
			Driver:      driver,
			Path:        strings.TrimSpace(st.Path),
			BusyTimeout: dur("storage.busy_timeout", st.BusyTimeout, 0),
		}
	}

	if len(errs) > 0 {
		return nil, failure.Config("validate", errors.Join(errs...))
	}
	return s, nil
}

func validateLogging(lc LoggingConfig) error {
	if lvl := strings.TrimSpace(lc.Level); lvl != "" && !logx.ValidLevel(lvl) {
		return fmt.Errorf("logging.level: unknown level %q", lc.Level)
	}
	if lc.File.Enabled && strings.TrimSpace(lc.File.Path) == "" {
		return errors.New("logging.file.path: required when file logging is enabled")
	}
	return nil
}

// LoggingSettings maps the logging section onto logx. A section with every
// sink disabled still logs to the console.
func LoggingSettings(lc LoggingConfig) logx.Config {
	out := logx.Config{
		Level:   strings.TrimSpace(lc.Level),
		Console: lc.Console,
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: strings.TrimSpace(lc.File.Path)},
	}
	if out.Level == "" {
		out.Level = "info"
	}
	if !out.Console && !out.File.Enabled {
		out.Console = true
	}
	return out
}

// ValidateReload is the hot-reload validator: only the logging section is
// applied live, so only it has to be valid for a reload to be accepted.
func ValidateReload(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	return validateLogging(cfg.Logging)
}
