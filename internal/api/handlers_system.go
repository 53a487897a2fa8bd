// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"os"
	"time"

	"github.com/mibmo/freestuffapi-go/internal/cache"
	"github.com/mibmo/freestuffapi-go/internal/jobs"
	"github.com/mibmo/freestuffapi-go/internal/log"
)

// statusResponse summarizes daemon state for operators.
type statusResponse struct {
	Service       string      `json:"service"`
	Version       string      `json:"version"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	Refreshing    bool        `json:"refreshing"`
	LastRefresh   jobs.Status `json:"last_refresh"`
	Cache         cache.Stats `json:"cache"`
}

// handleStatus reports version, uptime and the outcome of the last refresh.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Service:       "freestuffd",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Refreshing:    s.runner.Running(),
		LastRefresh:   s.runner.Status(),
		Cache:         s.cache.Stats(),
	})
}

// maxFeedBytes caps feed responses so a corrupted feed file cannot exhaust
// memory.
const maxFeedBytes = 8 * 1024 * 1024

// handleFeed serves the feed file written by the refresh job.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	feedPath, err := s.dataFilePath(s.config().FeedPath)
	if err != nil {
		logger.Error().Err(err).Str("event", "feed.invalid_path").Msg("feed path rejected")
		writeNotFound(w, "feed not available")
		return
	}

	info, err := os.Stat(feedPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().
				Str("event", "feed.not_found").
				Str("path", feedPath).
				Msg("feed file not written yet")
			writeNotFound(w, "feed not available")
			return
		}
		logger.Error().Err(err).Msg("failed to stat feed file")
		writeInternalError(w)
		return
	}
	if info.Size() > maxFeedBytes {
		logger.Warn().
			Int64("size", info.Size()).
			Str("event", "feed.too_large").
			Msg("feed file exceeds maximum size")
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "feed too large")
		return
	}

	// #nosec G304 -- feedPath is validated by dataFilePath and confined to the data directory
	f, err := os.Open(feedPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open feed file")
		writeInternalError(w)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=60")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
