// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mibmo/freestuffapi-go/internal/cache"
	"github.com/mibmo/freestuffapi-go/internal/log"
	"github.com/mibmo/freestuffapi-go/internal/metrics"
	"github.com/mibmo/freestuffapi-go/internal/store"
	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// gameListResponse wraps announcement lists so the shape can grow without
// breaking clients.
type gameListResponse struct {
	Count int                  `json:"count"`
	Games []store.Announcement `json:"games"`
}

// handleGameList returns stored announcements, narrowed by the category,
// store, kind, active and q query parameters.
func (s *Server) handleGameList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := store.Filter{
		Category: q.Get("category"),
		Store:    q.Get("store"),
		Kind:     q.Get("kind"),
		Query:    q.Get("q"),
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "active must be a boolean")
			return
		}
		f.ActiveOnly = active
	}

	games, err := s.store.List(r.Context(), f)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str("event", "games.list_failed").
			Msg("announcement list failed")
		writeInternalError(w)
		return
	}
	if games == nil {
		games = []store.Announcement{}
	}

	writeJSON(w, http.StatusOK, gameListResponse{Count: len(games), Games: games})
}

// handleGameDetail returns one announcement by ID. With ?fresh=1 the detail
// is fetched through the TTL cache and upstream instead of the store.
func (s *Server) handleGameDetail(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id64, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeBadRequest(w, "game ID must be a positive integer")
		return
	}
	id := freestuff.GameID(id64)

	if isFresh(r) {
		s.serveFreshDetail(w, r, id)
		return
	}

	ann, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w, "unknown game ID")
			return
		}
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str("event", "games.get_failed").
			Uint64("game_id", id64).
			Msg("announcement read failed")
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, ann)
}

// serveFreshDetail answers a detail read from the TTL cache, falling back
// to a live upstream fetch on miss.
func (s *Server) serveFreshDetail(w http.ResponseWriter, r *http.Request, id freestuff.GameID) {
	key := cache.Key(id)
	if game, ok := s.cache.Get(key); ok {
		metrics.IncCacheHit()
		writeJSON(w, http.StatusOK, game)
		return
	}
	metrics.IncCacheMiss()

	if s.fetcher == nil {
		writeServiceUnavailable(w, "live lookups are not configured")
		return
	}

	info, err := s.fetcher.GameDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, freestuff.ErrNotFound) {
			writeNotFound(w, "unknown game ID")
			return
		}
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str("event", "games.fresh_failed").
			Str("game_id", id.String()).
			Msg("upstream detail fetch failed")
		writeServiceUnavailable(w, "upstream lookup failed")
		return
	}

	s.cache.Set(key, &info, s.config().CacheTTL)
	writeJSON(w, http.StatusOK, info)
}

func isFresh(r *http.Request) bool {
	switch r.URL.Query().Get("fresh") {
	case "1", "true":
		return true
	}
	return false
}
