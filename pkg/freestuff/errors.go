// SPDX-License-Identifier: MIT

package freestuff

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNoAPIKey     = errors.New("freestuff: no api key set")
	ErrRatelimited  = errors.New("freestuff: too many requests")
	ErrUnauthorized = errors.New("freestuff: api key rejected")
	ErrNotFound     = errors.New("freestuff: resource not found")
	ErrUpstream     = errors.New("freestuff: api internal error (5xx)")
	ErrUnavailable  = errors.New("freestuff: host unreachable or transport failure")
	ErrBadResponse  = errors.New("freestuff: invalid response format or malformed data")
	ErrAPI          = errors.New("freestuff: api reported an error")
	ErrTimeout      = errors.New("freestuff: request timed out")
	ErrTooManyIDs   = errors.New("freestuff: too many game ids per request")
)

// APIError is a rich error type that wraps the sentinel errors with context.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("freestuff: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the nested transport error, so
// errors.Is matches either: ErrHTTP for classification, or the cause
// itself (for example context.Canceled during shutdown).
func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Sentinel, e.Err}
	}
	return []error{e.Sentinel}
}

// wrapError classifies a transport error or HTTP status into a sentinel and
// returns it wrapped with diagnostic context. Body snippets are redacted
// before they can end up in logs.
func wrapError(operation string, err error, status int, body []byte) error {
	sentinel := ErrBadResponse

	switch {
	case err != nil:
		sentinel = classifyTransport(err)
	case status == http.StatusTooManyRequests:
		sentinel = ErrRatelimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		sentinel = ErrUnauthorized
	case status == http.StatusNotFound:
		sentinel = ErrNotFound
	case status >= 500:
		sentinel = ErrUpstream
	}

	return &APIError{
		Sentinel:  sentinel,
		Operation: operation,
		Status:    status,
		Body:      redact(string(body)),
		Err:       err,
	}
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrUnavailable
}

var sensitivePattern = regexp.MustCompile(`(?i)\b(token|key|secret|sid|password|authorization)"?\s*[=:]\s*"?(?:basic\s+|bearer\s+)?[^\s",}]+`)

// redact masks credential-shaped values in upstream response snippets.
func redact(s string) string {
	if s == "" {
		return ""
	}
	return sensitivePattern.ReplaceAllString(s, "$1=[REDACTED]")
}
