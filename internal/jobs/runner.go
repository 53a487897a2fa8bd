// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mibmo/freestuffapi-go/internal/log"
	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// ErrBusy indicates a refresh is already in progress.
var ErrBusy = errors.New("jobs: refresh already in progress")

const defaultInterval = 15 * time.Minute

// Runner schedules refresh cycles and serializes manual triggers against
// them with an atomic busy flag.
type Runner struct {
	refresher *Refresher
	busy      atomic.Bool

	mu   sync.RWMutex
	last Status
}

// NewRunner creates a Runner around the given Refresher.
func NewRunner(refresher *Refresher) *Runner {
	return &Runner{refresher: refresher}
}

// Start runs an initial refresh, then cycles at the configured interval
// plus jitter until ctx is canceled. It blocks.
func (r *Runner) Start(ctx context.Context) {
	logger := log.WithComponentFromContext(ctx, "jobs")

	if _, err := r.RunNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().
			Err(err).
			Str("event", "runner.initial_refresh_failed").
			Msg("initial refresh failed")
	}

	for {
		timer := time.NewTimer(r.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info().
				Str("event", "runner.stopped").
				Msg("refresh runner stopped")
			return
		case <-timer.C:
			_, err := r.RunNow(ctx)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
			case errors.Is(err, ErrBusy):
				logger.Debug().
					Str("event", "runner.skip_busy").
					Msg("scheduled refresh skipped, one is already running")
			default:
				logger.Error().
					Err(err).
					Str("event", "runner.refresh_failed").
					Msg("scheduled refresh failed")
			}
		}
	}
}

// RunNow performs one refresh immediately, failing fast with ErrBusy when
// a refresh is already running.
func (r *Runner) RunNow(ctx context.Context) (*Status, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer r.busy.Store(false)

	st, err := r.refresher.RunOnce(ctx)

	r.mu.Lock()
	if err != nil {
		// Keep the last successful counts; only surface the failure.
		r.last.Error = err.Error()
	} else {
		r.last = *st
	}
	r.mu.Unlock()

	return st, err
}

// RefreshGames ingests the given games, failing fast with ErrBusy when a
// refresh is already running.
func (r *Runner) RefreshGames(ctx context.Context, ids []freestuff.GameID) error {
	if !r.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer r.busy.Store(false)

	return r.refresher.RefreshGames(ctx, ids)
}

// Status returns the most recent refresh outcome.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Running reports whether a refresh is currently in progress.
func (r *Runner) Running() bool {
	return r.busy.Load()
}

// Reconfigure applies new settings; they take effect with the next cycle.
func (r *Runner) Reconfigure(cfg Config) {
	r.refresher.setConfig(cfg)
}

func (r *Runner) nextDelay() time.Duration {
	cfg := r.refresher.config()
	delay := cfg.Interval
	if delay <= 0 {
		delay = defaultInterval
	}
	if cfg.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(cfg.Jitter)))
	}
	return delay
}
