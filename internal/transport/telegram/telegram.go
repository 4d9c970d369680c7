// Package telegram relays notifications through a Telegram bot.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "seatwatch/internal/transport"
	logx "seatwatch/pkg/logx"
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int // forum topic; 0 for none
	Timeout  time.Duration

	// APIURL overrides the Bot API endpoint (tests, local bot API servers).
	APIURL string
}

type Channel struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Channel, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	// Offline: we only send, so skip the getMe round trip and never poll.
	b, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimSpace(cfg.APIURL),
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: cfg.Timeout},
		OnError: func(err error, _ tele.Context) {
			log.Debug("telebot error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	return &Channel{cfg: cfg, log: log, bot: b}, nil
}

func (c *Channel) Name() string { return "telegram" }

// SendText posts text as a plain message. telebot has no per-call context, so
// ctx is only checked before the request; the client timeout bounds the call.
func (c *Channel) SendText(ctx context.Context, text string) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	opts := &tele.SendOptions{
		DisableWebPagePreview: true,
		ThreadID:              c.cfg.ThreadID,
	}
	if _, err := c.bot.Send(tele.ChatID(c.cfg.ChatID), text, opts); err != nil {
		var apiErr *tele.Error
		if errors.As(err, &apiErr) {
			return &kit.DeliveryError{Channel: c.Name(), Status: apiErr.Code, Body: kit.Indent(apiErr.Description, "    ")}
		}
		return err
	}
	return nil
}
