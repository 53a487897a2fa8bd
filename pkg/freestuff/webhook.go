// SPDX-License-Identifier: MIT

package freestuff

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Webhook event names pushed by the FreeStuff API.
const (
	// EventFreeGames announces newly approved free products; its data is a
	// list of game IDs.
	EventFreeGames = "free_games"
	// EventStatus reports upstream service health transitions; its data is
	// a ServiceStatus.
	EventStatus = "status"
)

const maxWebhookBytes = 1 << 20

var (
	// ErrBadSecret is returned when the delivery secret does not match.
	ErrBadSecret = errors.New("freestuff: webhook secret mismatch")
	// ErrBadEvent is returned when an event payload accessor is used on the
	// wrong event type, or the event name is missing.
	ErrBadEvent = errors.New("freestuff: unexpected webhook event")
)

// WebhookEvent is a single notification delivered by the FreeStuff API.
// The shared secret is verified during parsing and not retained.
type WebhookEvent struct {
	Event string
	Data  json.RawMessage
}

// ParseWebhook reads and authenticates a webhook delivery. The configured
// secret is compared in constant time; an empty configured secret rejects
// every delivery.
func ParseWebhook(r *http.Request, secret string) (*WebhookEvent, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		return nil, fmt.Errorf("read webhook body: %w", err)
	}

	var payload struct {
		Event  string          `json:"event"`
		Secret string          `json:"secret"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}

	if !verifySecret(payload.Secret, secret) {
		return nil, ErrBadSecret
	}
	if payload.Event == "" {
		return nil, ErrBadEvent
	}
	return &WebhookEvent{Event: payload.Event, Data: payload.Data}, nil
}

// verifySecret returns true if got matches expected using constant-time
// comparison. Empty secrets are always treated as unauthorized.
func verifySecret(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// GameIDs returns the payload of a free_games event.
func (e *WebhookEvent) GameIDs() ([]GameID, error) {
	if e.Event != EventFreeGames {
		return nil, ErrBadEvent
	}
	var ids []GameID
	if err := json.Unmarshal(e.Data, &ids); err != nil {
		return nil, fmt.Errorf("decode free_games data: %w", err)
	}
	return ids, nil
}

// Status returns the payload of a status event.
func (e *WebhookEvent) Status() (ServiceStatus, error) {
	if e.Event != EventStatus {
		return "", ErrBadEvent
	}
	var s ServiceStatus
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", fmt.Errorf("decode status data: %w", err)
	}
	return s, nil
}
