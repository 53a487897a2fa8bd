// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mibmo/freestuffapi-go/internal/api/middleware"
	"github.com/mibmo/freestuffapi-go/internal/jobs"
	"github.com/mibmo/freestuffapi-go/internal/log"
	"github.com/mibmo/freestuffapi-go/internal/metrics"
	"github.com/mibmo/freestuffapi-go/internal/telemetry"
	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// webhookTimeout bounds the ingest triggered by one webhook delivery.
const webhookTimeout = 2 * time.Minute

// handleWebhook ingests event deliveries from the upstream API. The shared
// secret is verified by ParseWebhook; with no secret configured every
// delivery is rejected.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "webhook")

	event, err := freestuff.ParseWebhook(r, s.config().WebhookSecret)
	if err != nil {
		if errors.Is(err, freestuff.ErrBadSecret) {
			logger.Warn().
				Str("event", "webhook.bad_secret").
				Str("remote_addr", r.RemoteAddr).
				Msg("webhook secret mismatch")
			metrics.IncWebhookEvent("unknown", "rejected")
			writeUnauthorized(w)
			return
		}
		logger.Warn().Err(err).Str("event", "webhook.malformed").Msg("webhook payload rejected")
		metrics.IncWebhookEvent("unknown", "error")
		writeBadRequest(w, "malformed webhook payload")
		return
	}

	middleware.AddSpanAttributes(r, attribute.String(telemetry.WebhookEventKey, event.Event))

	switch event.Event {
	case freestuff.EventFreeGames:
		s.webhookFreeGames(w, r, event)
	case freestuff.EventStatus:
		s.webhookStatus(w, r, event)
	default:
		// Unknown events are acked so upstream does not retry them.
		logger.Info().
			Str("event", "webhook.ignored").
			Str("webhook_event", event.Event).
			Msg("ignoring unhandled webhook event")
		metrics.IncWebhookEvent(event.Event, "ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}

// webhookFreeGames ingests the announced games synchronously so upstream
// retries on failure.
func (s *Server) webhookFreeGames(w http.ResponseWriter, r *http.Request, event *freestuff.WebhookEvent) {
	logger := log.WithComponentFromContext(r.Context(), "webhook")

	ids, err := event.GameIDs()
	if err != nil {
		logger.Warn().Err(err).Str("event", "webhook.bad_payload").Msg("free_games payload rejected")
		metrics.IncWebhookEvent(event.Event, "error")
		writeBadRequest(w, "malformed free_games payload")
		return
	}
	if len(ids) == 0 {
		metrics.IncWebhookEvent(event.Event, "ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	// Ingest outlives the delivery connection.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), webhookTimeout)
	defer cancel()

	if err := s.runner.RefreshGames(ctx, ids); err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			logger.Warn().
				Str("event", "webhook.busy").
				Msg("refresh already in progress, upstream will retry")
			metrics.IncWebhookEvent(event.Event, "rejected")
			writeConflict(w, "refresh already in progress", retryAfterSeconds)
			return
		}
		logger.Error().Err(err).
			Str("event", "webhook.ingest_failed").
			Int("games", len(ids)).
			Msg("webhook ingest failed")
		metrics.IncWebhookEvent(event.Event, "error")
		writeInternalError(w)
		return
	}

	logger.Info().
		Str("event", "webhook.ingested").
		Int("games", len(ids)).
		Msg("webhook games ingested")
	metrics.IncWebhookEvent(event.Event, "ok")
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "games": len(ids)})
}

// webhookStatus records the announced upstream service state.
func (s *Server) webhookStatus(w http.ResponseWriter, r *http.Request, event *freestuff.WebhookEvent) {
	logger := log.WithComponentFromContext(r.Context(), "webhook")

	st, err := event.Status()
	if err != nil {
		logger.Warn().Err(err).Str("event", "webhook.bad_payload").Msg("status payload rejected")
		metrics.IncWebhookEvent(event.Event, "error")
		writeBadRequest(w, "malformed status payload")
		return
	}

	metrics.SetUpstreamStatus(string(st))
	metrics.IncWebhookEvent(event.Event, "ok")
	logger.Info().
		Str("event", "webhook.status").
		Str("upstream_status", string(st)).
		Msg("upstream status updated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
