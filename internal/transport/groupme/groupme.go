// Package groupme posts messages through a GroupMe bot.
package groupme

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	kit "seatwatch/internal/transport"
)

const (
	DefaultURL = "https://api.groupme.com/v3/bots/post"

	// The bots endpoint answers 202 Accepted on success.
	acceptedStatus = http.StatusAccepted
	maxErrorBody   = 4 << 10
)

type Config struct {
	BotID   string
	URL     string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

type botMessage struct {
	Text  string `json:"text"`
	BotID string `json:"bot_id"`
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BotID) == "" {
		return nil, errors.New("groupme bot_id is empty")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc, err := newHTTPClient(cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, http: hc}, nil
}

func newHTTPClient(timeout time.Duration) (*http.Client, error) {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        4,
	}
	// Negotiate HTTP/2 over TLS; plain-HTTP endpoints (tests, proxies) stay on 1.1.
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("groupme: configure http2: %w", err)
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

func (c *Client) Name() string { return "groupme" }

func (c *Client) SendText(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	body, err := json.Marshal(botMessage{Text: text, BotID: c.cfg.BotID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != acceptedStatus {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &kit.DeliveryError{
			Channel: c.Name(),
			Status:  resp.StatusCode,
			Body:    kit.Indent(string(b), "    "),
		}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}
