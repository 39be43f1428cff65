// Package notify delivers out-of-band push notifications to the site owner
// via the Pushover API. Delivery is best effort: a failed notification is
// logged and forgotten, never surfaced to the visitor.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.pushover.net/1/messages.json"

// Notifier sends a short text message to the site owner.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Config contains the parameters for a Pushover notifier.
type Config struct {
	Token    string // Application token
	User     string // Recipient user key
	Endpoint string // Optional API endpoint override, used in tests
	Client   *http.Client
	Logger   *slog.Logger
}

// Pushover posts messages to the Pushover REST API.
type Pushover struct {
	token    string
	user     string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewPushover creates a Pushover notifier. Missing credentials are allowed;
// sends are then skipped with a warning so local development works without a
// Pushover account.
func NewPushover(cfg Config) *Pushover {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pushover{
		token:    cfg.Token,
		user:     cfg.User,
		endpoint: endpoint,
		client:   client,
		logger:   logger,
	}
}

// Notify posts the text as a Pushover message. Failures of any kind are
// logged and swallowed.
func (p *Pushover) Notify(ctx context.Context, text string) {
	if p.token == "" || p.user == "" {
		p.logger.Warn("pushover credentials not configured, skipping notification")
		return
	}

	p.logger.Info("sending pushover notification", "message", text)

	form := url.Values{
		"token":   {p.token},
		"user":    {p.user},
		"message": {text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		p.logger.Error("failed to build pushover request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("failed to send pushover notification", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		p.logger.Error("pushover rejected notification",
			"error", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

// Nop is a Notifier that discards all messages.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string) {}
