// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mibmo/freestuffapi-go/internal/api/middleware"
	"github.com/mibmo/freestuffapi-go/internal/jobs"
	"github.com/mibmo/freestuffapi-go/internal/log"
	"github.com/mibmo/freestuffapi-go/internal/telemetry"
)

// refreshTimeout bounds one manual refresh cycle.
const refreshTimeout = 5 * time.Minute

// retryAfterSeconds is the Retry-After hint on 409 responses.
const retryAfterSeconds = 30

// handleRefresh runs a refresh cycle immediately. Concurrent requests are
// rejected with 409 while a cycle is in flight.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	// A client disconnect must not abort a half-finished ingest, so the
	// cycle runs detached from the request context.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), refreshTimeout)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-r.Context().Done():
			logger.Warn().
				Str("event", "refresh.client_disconnected").
				Msg("client disconnected, refresh continues")
		case <-done:
		}
	}()

	start := time.Now()
	status, err := s.runner.RunNow(ctx)
	if err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			logger.Warn().Str("event", "refresh.busy").Msg("refresh already in progress")
			writeConflict(w, "refresh already in progress", retryAfterSeconds)
			return
		}
		logger.Error().Err(err).Str("event", "refresh.failed").Msg("manual refresh failed")
		middleware.AddSpanAttributes(r, telemetry.JobAttributes("refresh", "error", time.Since(start).Milliseconds())...)
		middleware.AddSpanAttributes(r, telemetry.ErrorAttributes(err, "refresh")...)
		writeInternalError(w)
		return
	}

	middleware.AddSpanAttributes(r, telemetry.JobAttributes("refresh", "ok", time.Since(start).Milliseconds())...)
	middleware.AddSpanAttributes(r, telemetry.RefreshAttributes(status.Games, status.NewGames, status.Ended)...)

	logger.Info().
		Str("event", "refresh.completed").
		Int("games", status.Games).
		Int("new_games", status.NewGames).
		Int("ended", status.Ended).
		Dur("duration", time.Since(start)).
		Msg("manual refresh completed")

	writeJSON(w, http.StatusOK, status)
}
