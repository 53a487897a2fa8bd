// SPDX-License-Identifier: MIT

package freestuff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public FreeStuff API endpoint.
	DefaultBaseURL = "https://api.freestuffbot.xyz"

	// MaxDetailsPerRequest is the upstream limit on game ids per details
	// request.
	MaxDetailsPerRequest = 5

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "freestuffapi-go"
	maxBodyBytes     = 8 << 20
	maxErrBodyBytes  = 512
)

// Client is a FreeStuff API client. Construct it with New; the zero value
// is not usable.
type Client struct {
	baseURL      *url.URL
	apiKey       string
	userAgent    string
	http         *http.Client
	logger       zerolog.Logger
	limiter      *rate.Limiter
	breaker      *CircuitBreaker
	waitObserver func(time.Duration)
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL overrides the API endpoint, e.g. for testing against a mock
// server. The URL must carry an http or https scheme and a host.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse base url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base url scheme must be http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("base url host must not be empty")
		}
		u.Path = strings.TrimRight(u.Path, "/")
		c.baseURL = u
		return nil
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) error {
		if h == nil {
			return errors.New("http client must not be nil")
		}
		c.http = h
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// WithLogger attaches a logger; by default the client is silent.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) error {
		c.logger = l
		return nil
	}
}

// WithRateLimit throttles outgoing requests to rps requests per second
// with the given burst. Calls block on the limiter and honour context
// cancellation.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 || burst < 1 {
			return fmt.Errorf("invalid rate limit: rps=%v burst=%d", rps, burst)
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithWaitObserver registers a callback invoked with the time spent
// waiting on the rate limiter before each request. Only called when a
// rate limit is configured.
func WithWaitObserver(fn func(time.Duration)) Option {
	return func(c *Client) error {
		if fn == nil {
			return errors.New("wait observer must not be nil")
		}
		c.waitObserver = fn
		return nil
	}
}

// WithCircuitBreaker guards requests with the given breaker. Rejected
// calls fail fast with ErrCircuitOpen.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(c *Client) error {
		if cb == nil {
			return errors.New("circuit breaker must not be nil")
		}
		c.breaker = cb
		return nil
	}
}

// New constructs a Client for the given API key.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}

	base, err := url.Parse(DefaultBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse default base url: %w", err)
	}

	c := &Client{
		baseURL:   base,
		apiKey:    apiKey,
		userAgent: defaultUserAgent,
		logger:    zerolog.Nop(),
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
			},
		},
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Ping verifies connectivity and key validity.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doGet(ctx, "/v1/ping", "ping")
	return err
}

// GameList fetches the game IDs in the given category.
func (c *Client) GameList(ctx context.Context, category Category) ([]GameID, error) {
	path := "/v1/games/" + url.PathEscape(string(category))
	var ids []GameID
	if err := c.getData(ctx, path, "game_list", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GameDetails fetches info about up to MaxDetailsPerRequest games, keyed by
// decimal game ID. An empty input returns an empty map without a request.
func (c *Client) GameDetails(ctx context.Context, games []GameID) (map[string]GameInfo, error) {
	if len(games) == 0 {
		return map[string]GameInfo{}, nil
	}
	if len(games) > MaxDetailsPerRequest {
		return nil, &APIError{
			Sentinel:  ErrTooManyIDs,
			Operation: "game_details",
			Body:      fmt.Sprintf("%d ids, limit is %d", len(games), MaxDetailsPerRequest),
		}
	}

	parts := make([]string, len(games))
	for i, id := range games {
		parts[i] = id.String()
	}
	path := "/v1/game/" + strings.Join(parts, "+") + "/info"

	details := make(map[string]GameInfo, len(games))
	if err := c.getData(ctx, path, "game_details", &details); err != nil {
		return nil, err
	}
	return details, nil
}

// GameDetail fetches info about a single game. Helper over GameDetails.
func (c *Client) GameDetail(ctx context.Context, game GameID) (GameInfo, error) {
	details, err := c.GameDetails(ctx, []GameID{game})
	if err != nil {
		return GameInfo{}, err
	}
	for _, info := range details {
		return info, nil
	}
	return GameInfo{}, &APIError{
		Sentinel:  ErrBadResponse,
		Operation: "game_detail",
		Body:      "empty result set",
	}
}

// getData performs a GET and decodes the response envelope into out.
func (c *Client) getData(ctx context.Context, path, operation string, out any) error {
	body, err := c.doGet(ctx, path, operation)
	if err != nil {
		return err
	}

	var envelope struct {
		Success bool            `json:"success"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: operation, Err: err}
	}
	// The API reports failures through the message field.
	if envelope.Message != "" {
		return &APIError{Sentinel: ErrAPI, Operation: operation, Body: redact(envelope.Message)}
	}
	if len(envelope.Data) == 0 {
		return &APIError{Sentinel: ErrBadResponse, Operation: operation, Body: "missing data field"}
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: operation, Err: err}
	}
	return nil
}

// doGet runs one rate-limited, breaker-guarded GET and returns the body.
func (c *Client) doGet(ctx context.Context, path, operation string) ([]byte, error) {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &APIError{Sentinel: classifyTransport(err), Operation: operation, Err: err}
		}
		if c.waitObserver != nil {
			c.waitObserver(time.Since(waitStart))
		}
	}

	if c.breaker == nil {
		return c.roundTrip(ctx, path, operation)
	}

	var body []byte
	err := c.breaker.Call(func() error {
		b, err := c.roundTrip(ctx, path, operation)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	switch {
	case err == nil:
		return body, nil
	case errors.Is(err, ErrCircuitOpen):
		return nil, &APIError{Sentinel: ErrCircuitOpen, Operation: operation}
	default:
		return nil, err
	}
}

func (c *Client) roundTrip(ctx context.Context, path, operation string) ([]byte, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, wrapError(operation, err, 0, nil)
	}
	req.Header.Set("Authorization", "Basic "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("event", "freestuff.request_failed").
			Str("operation", operation).
			Msg("request failed")
		return nil, wrapError(operation, err, 0, nil)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxErrBodyBytes))
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxErrBodyBytes))
		c.logger.Debug().
			Str("event", "freestuff.request_rejected").
			Str("operation", operation).
			Int("status", res.StatusCode).
			Msg("request rejected")
		return nil, wrapError(operation, nil, res.StatusCode, snippet)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, wrapError(operation, err, res.StatusCode, nil)
	}

	c.logger.Debug().
		Str("event", "freestuff.request").
		Str("operation", operation).
		Int("status", res.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request completed")
	return body, nil
}
