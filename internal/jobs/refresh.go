// SPDX-License-Identifier: MIT

// Package jobs runs the periodic refresh cycle: list freebies upstream,
// diff against the store, fetch details, persist, publish the feed
// artifact, and notify downstream targets.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mibmo/freestuffapi-go/internal/cache"
	"github.com/mibmo/freestuffapi-go/internal/log"
	"github.com/mibmo/freestuffapi-go/internal/metrics"
	"github.com/mibmo/freestuffapi-go/internal/notify"
	"github.com/mibmo/freestuffapi-go/internal/store"
	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// retentionPeriod is how long ended announcements are kept before Prune
// removes them.
const retentionPeriod = 30 * 24 * time.Hour

// Client is the slice of the upstream API a refresh cycle needs.
type Client interface {
	GameList(ctx context.Context, category freestuff.Category) ([]freestuff.GameID, error)
	GameDetails(ctx context.Context, games []freestuff.GameID) (map[string]freestuff.GameInfo, error)
}

// Notifier delivers freebie events downstream.
type Notifier interface {
	Enabled() bool
	Send(ctx context.Context, event notify.Event) error
}

// Config holds the settings for refresh cycles.
type Config struct {
	// Categories to list upstream, in priority order: a game appearing in
	// several categories is recorded under the first one that listed it.
	Categories        []string
	DetailConcurrency int
	DetailRetries     int
	// FeedPath is the absolute path of the feed artifact.
	FeedPath string
	CacheTTL time.Duration
	// Interval and Jitter drive the Runner schedule.
	Interval time.Duration
	Jitter   time.Duration
}

// Status represents the outcome of the most recent refresh.
type Status struct {
	LastRun  time.Time `json:"last_run"`
	Games    int       `json:"games"`
	NewGames int       `json:"new_games"`
	Ended    int       `json:"ended"`
	Error    string    `json:"error,omitempty"`
}

// Refresher executes refresh cycles against its collaborators.
type Refresher struct {
	client   Client
	store    store.Store
	cache    cache.Cache
	notifier Notifier

	mu      sync.RWMutex
	cfg     Config
	backoff time.Duration
}

// NewRefresher creates a Refresher. The notifier may be nil when no
// downstream targets exist.
func NewRefresher(client Client, st store.Store, c cache.Cache, n Notifier, cfg Config) *Refresher {
	if c == nil {
		c = cache.NewNoop()
	}
	return &Refresher{
		client:   client,
		store:    st,
		cache:    c,
		notifier: n,
		cfg:      cfg,
		backoff:  500 * time.Millisecond,
	}
}

func (r *Refresher) config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

func (r *Refresher) setConfig(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// RunOnce performs one full refresh cycle.
func (r *Refresher) RunOnce(ctx context.Context) (*Status, error) {
	start := time.Now()
	cfg := r.config()
	logger := log.WithComponentFromContext(ctx, "jobs")
	logger.Info().
		Str("event", "refresh.start").
		Strs("categories", cfg.Categories).
		Msg("starting refresh")

	// 1. List every configured category upstream.
	listed := make(map[freestuff.GameID]string)
	var order []freestuff.GameID
	for _, cat := range cfg.Categories {
		ids, err := r.listGames(ctx, freestuff.Category(cat))
		if err != nil {
			return r.fail(logger, start, "list", fmt.Errorf("game list %q: %w", cat, err))
		}
		for _, id := range ids {
			if _, ok := listed[id]; !ok {
				listed[id] = cat
				order = append(order, id)
			}
		}
	}

	// 2. Diff against the store: unknown ids are new, known-but-ended ids
	// that reappear need their details again, active ids that vanished
	// from every listing have ended.
	known, err := r.store.IDs(ctx)
	if err != nil {
		return r.fail(logger, start, "store", fmt.Errorf("store ids: %w", err))
	}
	activeRows, err := r.store.List(ctx, store.Filter{ActiveOnly: true})
	if err != nil {
		return r.fail(logger, start, "store", fmt.Errorf("list active: %w", err))
	}
	active := make(map[freestuff.GameID]struct{}, len(activeRows))
	for _, row := range activeRows {
		active[row.ID] = struct{}{}
	}

	var fetchIDs []freestuff.GameID
	for _, id := range order {
		_, isKnown := known[id]
		_, isActive := active[id]
		if !isKnown || !isActive {
			fetchIDs = append(fetchIDs, id)
		}
	}
	var endedIDs []freestuff.GameID
	for _, row := range activeRows {
		if _, ok := listed[row.ID]; !ok {
			endedIDs = append(endedIDs, row.ID)
		}
	}

	// 3. Fetch details for new and reappearing games.
	details, failedChunks := r.fetchDetails(ctx, fetchIDs, cfg)
	if len(fetchIDs) > 0 && len(details) == 0 && failedChunks > 0 {
		return r.fail(logger, start, "details", fmt.Errorf("all %d detail chunks failed", failedChunks))
	}

	// 4. Persist and warm the cache.
	now := time.Now().UTC()
	anns := make([]store.Announcement, 0, len(details))
	var newGames []notify.Freebie
	for _, id := range fetchIDs {
		info, ok := details[id]
		if !ok {
			continue
		}
		anns = append(anns, announcementFromInfo(id, info, listed[id], now))
		if _, isKnown := known[id]; !isKnown {
			newGames = append(newGames, freebieFromInfo(id, info))
		}
	}
	if err := r.store.Upsert(ctx, anns); err != nil {
		return r.fail(logger, start, "store", fmt.Errorf("upsert: %w", err))
	}
	endedCount, err := r.store.MarkEnded(ctx, endedIDs, now)
	if err != nil {
		return r.fail(logger, start, "store", fmt.Errorf("mark ended: %w", err))
	}
	r.warmCache(anns, cfg.CacheTTL)

	// 5. Publish the feed artifact.
	current, err := r.store.List(ctx, store.Filter{ActiveOnly: true})
	if err != nil {
		return r.fail(logger, start, "store", fmt.Errorf("list for feed: %w", err))
	}
	if err := writeFeed(ctx, cfg.FeedPath, current, now); err != nil {
		metrics.IncFeedWriteError()
		return r.fail(logger, start, "feed", err)
	}
	metrics.SetFeedFreebies(len(current))
	byStore := make(map[string]int)
	for _, a := range current {
		byStore[string(a.Store)]++
	}
	metrics.RecordActiveFreebies(byStore)

	// 6. Notify downstream targets about genuinely new freebies.
	// Reappearing games were announced when first seen.
	if r.notifier != nil && r.notifier.Enabled() && len(newGames) > 0 {
		if err := r.notifier.Send(ctx, notify.NewFreebiesEvent(newGames)); err != nil {
			metrics.IncRefreshFailure("notify")
			logger.Warn().
				Err(err).
				Str("event", "refresh.notify_failed").
				Msg("freebie notification failed")
		}
	}

	// 7. Drop long-ended announcements.
	if removed, err := r.store.Prune(ctx, now.Add(-retentionPeriod)); err != nil {
		logger.Warn().
			Err(err).
			Str("event", "refresh.prune_failed").
			Msg("prune failed")
	} else if removed > 0 {
		logger.Debug().
			Int("removed", removed).
			Str("event", "refresh.prune").
			Msg("pruned old announcements")
	}

	metrics.IncRefresh("success")
	metrics.ObserveRefreshDuration(time.Since(start))
	metrics.AddNewAnnouncements(len(newGames))
	metrics.AddEndedAnnouncements(endedCount)

	status := &Status{
		LastRun:  now,
		Games:    len(current),
		NewGames: len(newGames),
		Ended:    endedCount,
	}
	logger.Info().
		Str("event", "refresh.success").
		Int("games", status.Games).
		Int("new", status.NewGames).
		Int("ended", status.Ended).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("refresh completed")
	return status, nil
}

// RefreshGames ingests specific games without a listing pass. The upstream
// webhook uses it to pick announcements up ahead of the next cycle.
func (r *Refresher) RefreshGames(ctx context.Context, ids []freestuff.GameID) error {
	if len(ids) == 0 {
		return nil
	}
	cfg := r.config()
	logger := log.WithComponentFromContext(ctx, "jobs")
	logger.Info().
		Str("event", "refresh.targeted_start").
		Int("ids", len(ids)).
		Msg("starting targeted refresh")

	known, err := r.store.IDs(ctx)
	if err != nil {
		return fmt.Errorf("store ids: %w", err)
	}

	details, failedChunks := r.fetchDetails(ctx, ids, cfg)
	if len(details) == 0 && failedChunks > 0 {
		return fmt.Errorf("all %d detail chunks failed", failedChunks)
	}

	now := time.Now().UTC()
	anns := make([]store.Announcement, 0, len(details))
	var newGames []notify.Freebie
	for _, id := range ids {
		info, ok := details[id]
		if !ok {
			continue
		}
		// Webhook-delivered games are free announcements.
		anns = append(anns, announcementFromInfo(id, info, string(freestuff.CategoryFree), now))
		if _, isKnown := known[id]; !isKnown {
			newGames = append(newGames, freebieFromInfo(id, info))
		}
	}
	if err := r.store.Upsert(ctx, anns); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	r.warmCache(anns, cfg.CacheTTL)

	current, err := r.store.List(ctx, store.Filter{ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("list for feed: %w", err)
	}
	if err := writeFeed(ctx, cfg.FeedPath, current, now); err != nil {
		metrics.IncFeedWriteError()
		return err
	}
	metrics.SetFeedFreebies(len(current))

	if r.notifier != nil && r.notifier.Enabled() && len(newGames) > 0 {
		if err := r.notifier.Send(ctx, notify.NewFreebiesEvent(newGames)); err != nil {
			metrics.IncRefreshFailure("notify")
			logger.Warn().
				Err(err).
				Str("event", "refresh.notify_failed").
				Msg("freebie notification failed")
		}
	}
	metrics.AddNewAnnouncements(len(newGames))

	logger.Info().
		Str("event", "refresh.targeted_success").
		Int("ingested", len(anns)).
		Int("new", len(newGames)).
		Msg("targeted refresh completed")
	return nil
}

func (r *Refresher) listGames(ctx context.Context, category freestuff.Category) ([]freestuff.GameID, error) {
	start := time.Now()
	ids, err := r.client.GameList(ctx, category)
	metrics.ObserveUpstreamDuration("game_list", time.Since(start))
	metrics.IncUpstreamRequest("game_list", outcomeOf(err))
	return ids, err
}

func (r *Refresher) warmCache(anns []store.Announcement, ttl time.Duration) {
	for i := range anns {
		detail := anns[i].Detail
		r.cache.Set(cache.Key(anns[i].ID), &detail, ttl)
	}
}

func (r *Refresher) fail(logger zerolog.Logger, start time.Time, stage string, err error) (*Status, error) {
	metrics.IncRefresh("failure")
	metrics.IncRefreshFailure(stage)
	metrics.ObserveRefreshDuration(time.Since(start))
	logger.Error().
		Err(err).
		Str("event", "refresh.failed").
		Str("stage", stage).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("refresh failed")
	return nil, err
}

func announcementFromInfo(id freestuff.GameID, info freestuff.GameInfo, category string, now time.Time) store.Announcement {
	return store.Announcement{
		ID:        id,
		Title:     info.Title,
		Store:     info.Store,
		Kind:      info.Kind,
		Type:      info.Type,
		Category:  category,
		Active:    true,
		FirstSeen: now,
		LastSeen:  now,
		Detail:    info,
	}
}

func freebieFromInfo(id freestuff.GameID, info freestuff.GameInfo) notify.Freebie {
	f := notify.Freebie{
		ID:    id,
		Title: info.Title,
		Store: info.Store,
		Kind:  info.Kind,
		URL:   info.URLs.Org,
	}
	if f.URL == "" {
		f.URL = info.URLs.Default
	}
	if info.Until != nil {
		t := info.Until.Time()
		f.Until = &t
	}
	return f
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
