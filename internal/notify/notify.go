// SPDX-License-Identifier: MIT

// Package notify delivers freebie events to operator-configured webhook
// targets.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mibmo/freestuffapi-go/internal/log"
	"github.com/mibmo/freestuffapi-go/internal/metrics"
	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// EventNewFreebies names the event posted when new freebies appear.
const EventNewFreebies = "freebies.new"

const (
	defaultTimeout = 10 * time.Second
	defaultBackoff = 500 * time.Millisecond
	userAgent      = "freestuffd-notify"
)

// Event is the JSON document posted to each configured target.
type Event struct {
	Event    string    `json:"event"`
	SentAt   time.Time `json:"sent_at"`
	Freebies []Freebie `json:"freebies"`
}

// Freebie is the notification view of one announcement.
type Freebie struct {
	ID    freestuff.GameID      `json:"id"`
	Title string                `json:"title"`
	Store freestuff.Store       `json:"store"`
	Kind  freestuff.ProductKind `json:"kind"`
	URL   string                `json:"url,omitempty"`
	Until *time.Time            `json:"until,omitempty"`
}

// NewFreebiesEvent builds the event payload for newly announced freebies.
func NewFreebiesEvent(freebies []Freebie) Event {
	return Event{
		Event:    EventNewFreebies,
		SentAt:   time.Now().UTC(),
		Freebies: freebies,
	}
}

// Config holds delivery settings.
type Config struct {
	URLs          []string
	AllowedHosts  []string
	AllowInsecure bool
	Timeout       time.Duration
	Retries       int
}

// Notifier fans events out to the configured targets.
type Notifier struct {
	targets []string
	policy  Policy
	client  *http.Client
	timeout time.Duration
	retries int
	backoff time.Duration
	logger  zerolog.Logger
}

// New creates a Notifier. A Notifier with no targets is valid and drops
// every event.
func New(cfg Config) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &Notifier{
		targets: append([]string(nil), cfg.URLs...),
		policy: Policy{
			AllowedHosts:  cfg.AllowedHosts,
			AllowInsecure: cfg.AllowInsecure,
		},
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		retries: retries,
		backoff: defaultBackoff,
		logger:  log.WithComponent("notify"),
	}
}

// Enabled reports whether any delivery targets are configured.
func (n *Notifier) Enabled() bool { return len(n.targets) > 0 }

// Send delivers the event to every target concurrently and returns the
// joined delivery errors, nil when all targets accepted it.
func (n *Notifier) Send(ctx context.Context, event Event) error {
	if len(n.targets) == 0 {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, target := range n.targets {
		target := target
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := n.deliver(ctx, target, body); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (n *Notifier) deliver(ctx context.Context, target string, body []byte) error {
	logger := n.logger.With().Str("target", redactTarget(target)).Logger()

	if err := n.policy.Check(target); err != nil {
		metrics.IncNotifyDelivery("blocked")
		logger.Warn().
			Err(err).
			Str("event", "notify.blocked").
			Msg("delivery target rejected by policy")
		return fmt.Errorf("notify: %s blocked: %w", redactTarget(target), err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * n.backoff
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.IncNotifyDelivery("failed")
				return fmt.Errorf("notify: %s: %w", redactTarget(target), ctx.Err())
			}
		}

		if err := n.post(ctx, target, body); err != nil {
			lastErr = err
			logger.Debug().
				Err(err).
				Int("attempt", attempt+1).
				Str("event", "notify.attempt_failed").
				Msg("delivery attempt failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}

		metrics.IncNotifyDelivery("delivered")
		logger.Debug().
			Str("event", "notify.delivered").
			Msg("event delivered")
		return nil
	}

	metrics.IncNotifyDelivery("failed")
	logger.Warn().
		Err(lastErr).
		Int("attempts", n.retries+1).
		Str("event", "notify.delivery_failed").
		Msg("delivery failed after retries")
	return fmt.Errorf("notify: deliver to %s after %d attempts: %w", redactTarget(target), n.retries+1, lastErr)
}

func (n *Notifier) post(ctx context.Context, target string, body []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		// url.Error embeds the full target including any webhook token
		// in its path; keep only the transport error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("post %s: %w", redactTarget(target), uerr.Err)
		}
		return fmt.Errorf("post %s: %w", redactTarget(target), err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: unexpected status %d", redactTarget(target), resp.StatusCode)
	}
	return nil
}

// redactTarget reduces a target URL to scheme://host for logs and errors.
// Webhook tokens commonly live in the path or query.
func redactTarget(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "invalid-target"
	}
	return u.Scheme + "://" + u.Host
}
