// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mibmo/freestuffapi-go/internal/log"
	"github.com/mibmo/freestuffapi-go/internal/metrics"
	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// detailTimeout bounds a single details request including its retries'
// network time, per attempt.
const detailTimeout = 15 * time.Second

type chunkResult struct {
	ids   []freestuff.GameID
	games map[string]freestuff.GameInfo
	err   error
}

// fetchDetails fans detail requests out in chunks of MaxDetailsPerRequest
// with bounded concurrency. It returns whatever succeeded plus the number
// of chunks that failed after retries.
func (r *Refresher) fetchDetails(ctx context.Context, ids []freestuff.GameID, cfg Config) (map[freestuff.GameID]freestuff.GameInfo, int) {
	details := make(map[freestuff.GameID]freestuff.GameInfo, len(ids))
	if len(ids) == 0 {
		return details, 0
	}

	logger := log.WithComponentFromContext(ctx, "jobs")
	chunks := chunkIDs(ids, freestuff.MaxDetailsPerRequest)
	maxPar := clampConcurrency(cfg.DetailConcurrency, 2, 8)

	sem := make(chan struct{}, maxPar)
	results := make(chan chunkResult, len(chunks))
	var wg sync.WaitGroup

	for _, chunk := range chunks {
		chunk := chunk
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			games, err := r.fetchChunkWithRetry(ctx, chunk, cfg.DetailRetries)
			results <- chunkResult{ids: chunk, games: games, err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	failed := 0
	for res := range results {
		if res.err != nil {
			failed++
			logger.Warn().
				Err(res.err).
				Int("ids", len(res.ids)).
				Str("event", "refresh.chunk_failed").
				Msg("detail chunk failed")
			continue
		}
		for key, info := range res.games {
			id, err := strconv.ParseUint(key, 10, 64)
			if err != nil {
				logger.Debug().
					Str("id", key).
					Str("event", "refresh.bad_detail_id").
					Msg("unparseable game id in details response")
				continue
			}
			details[freestuff.GameID(id)] = info
		}
	}

	return details, failed
}

func (r *Refresher) fetchChunkWithRetry(ctx context.Context, chunk []freestuff.GameID, retries int) (map[string]freestuff.GameInfo, error) {
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * r.backoff
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, detailTimeout)
		start := time.Now()
		games, err := r.client.GameDetails(reqCtx, chunk)
		cancel()
		metrics.ObserveUpstreamDuration("game_details", time.Since(start))
		metrics.IncUpstreamRequest("game_details", outcomeOf(err))

		if err == nil {
			return games, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("game details after %d attempts: %w", retries+1, lastErr)
}

func chunkIDs(ids []freestuff.GameID, size int) [][]freestuff.GameID {
	if size <= 0 {
		size = freestuff.MaxDetailsPerRequest
	}
	var chunks [][]freestuff.GameID
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// clampConcurrency keeps worker counts within sane bounds.
func clampConcurrency(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
