// Package collegescheduler drives a headless browser through the scheduling
// site's single sign-on (including Duo confirmation) and reads course section
// data from the authenticated session.
package collegescheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"seatwatch/internal/course"
	"seatwatch/internal/failure"
	logx "seatwatch/pkg/logx"
)

const (
	DefaultBaseURL      = "https://fsu.collegescheduler.com"
	DefaultMFATimeout   = time.Hour
	DefaultLoginTimeout = time.Minute
	DefaultQueryTimeout = 30 * time.Second

	landingTitle = "Schedule Assistant"

	selUsername = "#username"
	selPassword = "#password"
	selSubmit   = "#fsu-login-button"
	selTrust    = "#trust-browser-button"
)

type Config struct {
	BaseURL  string
	Username string
	Password string
	Term     Term

	// Headless hides the browser window. The Duo prompt is delivered to the
	// user's phone, so a visible window is optional.
	Headless bool
	ExecPath string

	MFATimeout   time.Duration
	LoginTimeout time.Duration
	QueryTimeout time.Duration
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return errors.New("collegescheduler: username and password are required")
	}
	if c.Term.Year <= 0 || strings.TrimSpace(c.Term.Semester) == "" {
		return errors.New("collegescheduler: term year and semester are required")
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.MFATimeout <= 0 {
		c.MFATimeout = DefaultMFATimeout
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = DefaultLoginTimeout
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	return nil
}

// Client opens authenticated browser sessions.
type Client struct {
	cfg Config
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, log: log}, nil
}

// Session is one logged-in browser. It is not safe for concurrent use.
type Session struct {
	cfg Config
	log logx.Logger

	ctx       context.Context // browser tab
	closeOnce sync.Once
	cancelTab context.CancelFunc
	cancelExe context.CancelFunc
}

// Acquire starts a browser, signs in and waits for the Duo confirmation.
// Errors are classified as authentication failures.
func (c *Client) Acquire(ctx context.Context) (*Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", c.cfg.Headless))
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}

	// The browser outlives Acquire; it is torn down by Session.Close.
	exeCtx, cancelExe := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(exeCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			c.log.Trace(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			c.log.Debug(fmt.Sprintf(format, args...))
		}),
	)
	s := &Session{cfg: c.cfg, log: c.log, ctx: tabCtx, cancelTab: cancelTab, cancelExe: cancelExe}

	if err := s.login(ctx); err != nil {
		_ = s.Close()
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, failure.Auth("sign in", err)
	}
	return s, nil
}

func (s *Session) login(ctx context.Context) error {
	// Start the browser on the long-lived tab context so later timeouts do
	// not close it.
	if err := chromedp.Run(s.ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	s.log.Debug("browser started")

	err := s.run(ctx, s.cfg.LoginTimeout,
		network.Enable(),
		network.SetCacheDisabled(true),
		chromedp.Navigate(s.cfg.BaseURL),
		chromedp.WaitVisible(selUsername, chromedp.ByQuery),
		chromedp.Click(selUsername, chromedp.ByQuery),
		chromedp.SendKeys(selUsername, s.cfg.Username, chromedp.ByQuery),
		chromedp.Click(selPassword, chromedp.ByQuery),
		chromedp.SendKeys(selPassword, s.cfg.Password, chromedp.ByQuery),
		chromedp.Click(selSubmit, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("submit credentials: %w", err)
	}

	s.log.Info("waiting for Duo confirmation", logx.Duration("timeout", s.cfg.MFATimeout))
	err = s.run(ctx, s.cfg.MFATimeout,
		chromedp.WaitVisible(selTrust, chromedp.ByQuery),
		chromedp.Click(selTrust, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("wait for Duo confirmation: %w", err)
	}

	if err := s.run(ctx, s.cfg.LoginTimeout, waitTitle(landingTitle, 500*time.Millisecond)); err != nil {
		return fmt.Errorf("wait for %q: %w", landingTitle, err)
	}
	return nil
}

// Query loads the course's regblocks document and decodes its sections.
func (s *Session) Query(ctx context.Context, c course.Tracked) ([]course.Section, error) {
	u := RegBlocksURL(s.cfg.BaseURL, s.cfg.Term, c)
	var raw string
	err := s.run(ctx, s.cfg.QueryTimeout,
		chromedp.Navigate(u),
		chromedp.Text("pre", &raw, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c, err)
	}
	return DecodeRegBlocks([]byte(raw))
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelExe()
		s.log.Debug("browser closed")
	})
	return nil
}

// run executes actions on the tab, bounded by d and by the caller's ctx.
func (s *Session) run(ctx context.Context, d time.Duration, actions ...chromedp.Action) error {
	rctx, cancel := context.WithTimeout(s.ctx, d)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(rctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func waitTitle(want string, every time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			var title string
			if err := chromedp.Title(&title).Do(ctx); err != nil {
				return err
			}
			if title == want {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	})
}
