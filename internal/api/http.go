// SPDX-License-Identifier: MIT

// Package api provides the HTTP surface of the freestuffd daemon: feed and
// announcement reads, refresh control, and upstream webhook ingest.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mibmo/freestuffapi-go/internal/api/middleware"
	"github.com/mibmo/freestuffapi-go/internal/cache"
	"github.com/mibmo/freestuffapi-go/internal/config"
	"github.com/mibmo/freestuffapi-go/internal/health"
	"github.com/mibmo/freestuffapi-go/internal/jobs"
	"github.com/mibmo/freestuffapi-go/internal/store"
	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// RefreshRunner drives refresh cycles. Implemented by jobs.Runner.
type RefreshRunner interface {
	RunNow(ctx context.Context) (*jobs.Status, error)
	RefreshGames(ctx context.Context, ids []freestuff.GameID) error
	Status() jobs.Status
	Running() bool
}

// GameFetcher looks up single games upstream for cache-miss detail reads.
// Implemented by freestuff.Client.
type GameFetcher interface {
	GameDetail(ctx context.Context, id freestuff.GameID) (freestuff.GameInfo, error)
}

// Deps bundles the collaborators of the API server.
type Deps struct {
	Runner RefreshRunner
	Store  store.Store
	// Cache backs ?fresh=1 detail reads. Optional; a noop cache is used
	// when nil.
	Cache cache.Cache
	// Fetcher serves cache misses on ?fresh=1 detail reads. Optional;
	// fresh reads answer 503 when nil.
	Fetcher GameFetcher
	Health  *health.Manager
	Version string
}

// Server is the freestuffd HTTP API server.
type Server struct {
	mu  sync.RWMutex
	cfg config.AppConfig

	runner  RefreshRunner
	store   store.Store
	cache   cache.Cache
	fetcher GameFetcher
	health  *health.Manager

	startTime time.Time
	version   string
}

// New validates deps and creates a Server.
func New(cfg config.AppConfig, deps Deps) (*Server, error) {
	if deps.Runner == nil {
		return nil, errors.New("api: refresh runner is required")
	}
	if deps.Store == nil {
		return nil, errors.New("api: store is required")
	}
	if deps.Health == nil {
		return nil, errors.New("api: health manager is required")
	}
	c := deps.Cache
	if c == nil {
		c = cache.NewNoop()
	}

	return &Server{
		cfg:       cfg,
		runner:    deps.Runner,
		store:     deps.Store,
		cache:     c,
		fetcher:   deps.Fetcher,
		health:    deps.Health,
		startTime: time.Now(),
		version:   deps.Version,
	}, nil
}

// UpdateConfig swaps the runtime configuration after a reload. The routing
// tree and middleware stack are built once in Handler; only fields read per
// request (API token, anonymous auth, webhook secret, feed path) take
// effect immediately.
func (s *Server) UpdateConfig(cfg config.AppConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Server) config() config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Handler builds the routing tree with the full middleware stack applied.
func (s *Server) Handler() http.Handler {
	cfg := s.config()

	tracingService := ""
	if cfg.Tracing.Enabled {
		tracingService = cfg.LogService
	}

	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        cfg.CORSOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         cfg.MetricsEnabled,
		TracingService:        tracingService,
		EnableLogging:         true,
		RequestsPerMinute:     cfg.RateLimitPerMinute,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Get("/feed.json", s.handleFeed)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/games", s.handleGameList)
		r.Get("/games/{id}", s.handleGameDetail)

		// Webhook deliveries authenticate via the shared secret inside
		// the payload, not the API token.
		r.Post("/webhook", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.With(middleware.RefreshRateLimit()).Post("/refresh", s.handleRefresh)
		})
	})

	return r
}

// dataFilePath resolves rel against the data directory, rejecting absolute
// paths, traversal and symlink escapes.
func (s *Server) dataFilePath(rel string) (string, error) {
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("data file path must be relative: %s", rel)
	}
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("data file path contains traversal: %s", rel)
	}

	root, err := filepath.Abs(s.config().DataDir)
	if err != nil {
		return "", fmt.Errorf("resolve data directory: %w", err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolvedRoot = root
	}

	full := filepath.Join(root, clean)
	resolved := full
	if info, statErr := os.Stat(full); statErr == nil {
		if info.IsDir() {
			return "", fmt.Errorf("data file path points to directory: %s", rel)
		}
		if resolvedPath, evalErr := filepath.EvalSymlinks(full); evalErr == nil {
			resolved = resolvedPath
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return "", fmt.Errorf("stat data file: %w", statErr)
	} else {
		// The feed may not have been written yet; still pin the parent
		// directory inside the root.
		if realDir, evalErr := filepath.EvalSymlinks(filepath.Dir(full)); evalErr == nil {
			resolved = filepath.Join(realDir, filepath.Base(full))
		}
	}

	relToRoot, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil {
		return "", fmt.Errorf("resolve relative path: %w", err)
	}
	if strings.HasPrefix(relToRoot, "..") || filepath.IsAbs(relToRoot) {
		return "", fmt.Errorf("data file escapes data directory: %s", rel)
	}

	return resolved, nil
}
