// Package app wires configuration, logging, channels, storage and the
// supervisor into a runnable process.
package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"seatwatch/internal/collegescheduler"
	"seatwatch/internal/config"
	"seatwatch/internal/course"
	"seatwatch/internal/failure"
	"seatwatch/internal/notifier"
	"seatwatch/internal/ratelimit"
	"seatwatch/internal/runtime/supervisor"
	"seatwatch/internal/storage"
	kit "seatwatch/internal/transport"
	"seatwatch/internal/transport/groupme"
	"seatwatch/internal/transport/telegram"
	"seatwatch/internal/watch"
	logx "seatwatch/pkg/logx"
	"seatwatch/pkg/systemd"
)

type App struct {
	cfgm     *config.ConfigManager
	settings *config.Settings

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	notif *notifier.Service
	sup   *supervisor.Supervisor
	sd    *systemd.Notifier
}

// NewApp loads and validates the configuration and builds every component.
// Errors are configuration failures: the process cannot start.
func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	s, err := config.Validate(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(s.Logging)
	log = log.With(logx.String("comp", "app"))

	var store storage.Store
	if st, err := storage.Open(s.Storage, log.With(logx.String("comp", "storage"))); err != nil {
		logSvc.Close()
		return nil, failure.Config("open storage", err)
	} else if st != nil {
		store = st
		log.Info("storage enabled", logx.String("driver", s.Storage.Driver))
	}

	channels, err := buildChannels(s, log)
	if err != nil {
		closeStore(store, log)
		logSvc.Close()
		return nil, failure.Config("build channels", err)
	}
	notif := notifier.New(s.Notifier, channels, log.With(logx.String("comp", "notifier")), store)

	client, err := collegescheduler.New(s.Scheduler, log.With(logx.String("comp", "scheduler")))
	if err != nil {
		closeStore(store, log)
		logSvc.Close()
		return nil, failure.Config("scheduler client", err)
	}

	limiter := ratelimit.New(s.Interval)
	loop, err := watch.New(watch.Config{Courses: s.Courses, Heartbeat: s.Heartbeat}, limiter, notif,
		watch.WithLogger(log.With(logx.String("comp", "watch"))),
		watch.WithStore(store),
	)
	if err != nil {
		closeStore(store, log)
		logSvc.Close()
		return nil, failure.Config("watch loop", err)
	}

	sd := systemd.New(s.Systemd)
	sup := supervisor.New(supervisor.Config{Name: s.Name, Cooldown: s.Cooldown},
		sessionAcquirer(client),
		loop,
		notif,
		supervisor.WithLogger(log.With(logx.String("comp", "supervisor"))),
		supervisor.WithStore(store),
		supervisor.WithStatusReporter(func(st supervisor.State, detail string) {
			msg := string(st)
			if detail != "" {
				msg += ": " + detail
			}
			if err := sd.Status(msg); err != nil {
				log.Debug("systemd status failed", logx.Err(err))
			}
		}),
	)

	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error { return config.ValidateReload(c) })

	return &App{
		cfgm:     cfgm,
		settings: s,
		log:      log,
		logs:     logSvc,
		store:    store,
		notif:    notif,
		sup:      sup,
		sd:       sd,
	}, nil
}

func buildChannels(s *config.Settings, log logx.Logger) ([]kit.Sender, error) {
	var out []kit.Sender
	if s.GroupMe != nil {
		c, err := groupme.New(*s.GroupMe)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if s.Telegram != nil {
		c, err := telegram.New(*s.Telegram, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// sessionAcquirer adapts the browser client to the supervisor.
func sessionAcquirer(c *collegescheduler.Client) supervisor.Acquirer {
	return supervisor.AcquirerFunc(func(ctx context.Context) (supervisor.Session, error) {
		sess, err := c.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return sess, nil
	})
}

func (a *App) Settings() *config.Settings { return a.settings }

// Run blocks until the supervisor stops. A context.Canceled result means the
// process was asked to stop; any other error is fatal.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	a.log.Info("starting",
		logx.String("name", a.settings.Name),
		logx.String("targets", course.List(a.settings.Courses)),
		logx.Duration("interval", a.settings.Interval),
		logx.Duration("cooldown", a.settings.Cooldown),
	)
	a.audit(ctx, "process.start", course.List(a.settings.Courses))

	// Ambient goroutines: config hot reload only. They never notify.
	bgCtx, bgCancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	sub := a.cfgm.Subscribe(8)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.cfgm.Watch(bgCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.applyReloads(bgCtx, sub)
	}()

	if err := a.sd.Ready(); err != nil {
		a.log.Debug("systemd ready failed", logx.Err(err))
	}

	err := a.sup.Run(ctx)

	_ = a.sd.Stopping()
	bgCancel()
	wg.Wait()

	reason := stopReasonOf(err)
	a.audit(context.WithoutCancel(ctx), "process.stop", string(reason))
	if reason == StopSignal {
		a.log.Info("stopped", logx.String("reason", string(reason)))
		return err
	}
	a.log.Error("stopped", logx.String("reason", string(reason)), logx.Err(err), logx.Any("supervisor", a.sup.Snapshot()))
	return err
}

// applyReloads applies the logging section live and reports every other
// changed section as needing a restart.
func (a *App) applyReloads(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}

			sections, attrs, restart := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}
			if next := config.LoggingSettings(newCfg.Logging); next != a.logs.Config() {
				a.logs.Apply(next)
			}

			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config reloaded", fields...)
			if restart {
				a.log.Warn("config changed outside logging; restart required for changes to take effect",
					logx.String("changed", strings.Join(sections, ",")))
			}
		}
	}
}

func (a *App) audit(ctx context.Context, event, detail string) {
	if a.store == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := a.store.AppendAudit(cctx, storage.AuditEntry{At: time.Now(), Event: event, Detail: detail}); err != nil {
		a.log.Debug("audit append failed", logx.Err(err))
	}
}

func (a *App) close() {
	closeStore(a.store, a.log)
	if a.logs != nil {
		a.logs.Close()
	}
}

func closeStore(st storage.Store, log logx.Logger) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil && !errors.Is(err, storage.ErrClosed) {
		log.Warn("storage close failed", logx.Err(err))
	}
}
