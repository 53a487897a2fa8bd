// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/mibmo/freestuffapi-go/internal/log"
	"github.com/mibmo/freestuffapi-go/internal/store"
)

// Feed is the freebies.json artifact written after each refresh and served
// by the API.
type Feed struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Count       int                  `json:"count"`
	Freebies    []store.Announcement `json:"freebies"`
}

// writeFeed replaces the feed artifact atomically: renameio writes a
// pending temp file, fsyncs, and renames, so readers never observe a
// partial document.
func writeFeed(ctx context.Context, path string, anns []store.Announcement, now time.Time) error {
	logger := log.FromContext(ctx)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending feed file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending feed file")
		}
	}()

	if anns == nil {
		anns = []store.Announcement{}
	}
	feed := Feed{GeneratedAt: now, Count: len(anns), Freebies: anns}

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(feed); err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace feed file: %w", err)
	}
	return nil
}
