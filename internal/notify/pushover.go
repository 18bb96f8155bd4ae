// Package notify sends best-effort event notifications to Pushover. The
// notifier is telemetry, not part of conversational correctness: one
// attempt per event, failures are logged and swallowed, and the caller
// never blocks on delivery problems beyond the transport timeout.
package notify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Event is a one-line notification. Ephemeral: constructed, sent, and
// dropped.
type Event struct {
	Title   string
	Message string
}

// Notifier delivers events. Implementations must never propagate transport
// failures to the caller.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Pushover posts events to the Pushover messages endpoint as an HTTP form.
type Pushover struct {
	user       string
	token      string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPushover creates a notifier for the given credentials. endpoint
// defaults to the public Pushover API when empty.
func NewPushover(user, token, endpoint string) *Pushover {
	if endpoint == "" {
		endpoint = "https://api.pushover.net/1/messages.json"
	}
	return &Pushover{
		user:     user,
		token:    token,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: slog.Default(),
	}
}

// Notify sends the event. At most one attempt; any failure is logged and
// dropped.
func (p *Pushover) Notify(ctx context.Context, ev Event) {
	form := url.Values{
		"user":    {p.user},
		"token":   {p.token},
		"title":   {ev.Title},
		"message": {ev.Message},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		p.logger.Warn("pushover request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("pushover delivery failed", "title", ev.Title, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("pushover rejected event", "title", ev.Title, "status", resp.StatusCode)
	}
}

// Nop is the notifier used when Pushover credentials are absent.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}
