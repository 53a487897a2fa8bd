// SPDX-License-Identifier: MIT

// Package store persists freebie announcements across daemon restarts so
// refresh cycles can diff against known games and API reads survive
// upstream outages.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// ErrNotFound is returned by Get when no announcement exists for the ID.
var ErrNotFound = errors.New("store: announcement not found")

// Announcement is a persisted game announcement. Detail carries the full
// upstream payload; the remaining fields are denormalized for filtering.
type Announcement struct {
	ID       freestuff.GameID           `json:"id"`
	Title    string                     `json:"title"`
	Store    freestuff.Store            `json:"store"`
	Kind     freestuff.ProductKind      `json:"kind"`
	Type     freestuff.AnnouncementType `json:"type"`
	Category string                     `json:"category"`

	// Active reports whether the game was still listed upstream during the
	// last refresh.
	Active    bool       `json:"active"`
	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  time.Time  `json:"last_seen"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	Detail freestuff.GameInfo `json:"detail"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Category   string
	Store      string
	Kind       string
	ActiveOnly bool
	// Query matches case-insensitively against NFC-normalized titles.
	Query string
}

// Store is the announcement persistence interface.
type Store interface {
	// Upsert inserts announcements or refreshes existing rows. FirstSeen
	// of known announcements is preserved; a re-appearing game loses its
	// ended marker.
	Upsert(ctx context.Context, anns []Announcement) error
	// Get returns one announcement or ErrNotFound.
	Get(ctx context.Context, id freestuff.GameID) (*Announcement, error)
	// List returns announcements matching the filter, most recently seen
	// first.
	List(ctx context.Context, f Filter) ([]Announcement, error)
	// MarkEnded deactivates the given announcements and stamps them with
	// endedAt. It returns how many rows actually flipped.
	MarkEnded(ctx context.Context, ids []freestuff.GameID, endedAt time.Time) (int, error)
	// IDs returns the set of all known announcement IDs.
	IDs(ctx context.Context) (map[freestuff.GameID]struct{}, error)
	// Prune deletes ended announcements whose end predates olderThan and
	// returns how many were removed.
	Prune(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// normalizeTitle folds a title for search: NFC so composed and decomposed
// forms compare equal, then lowercase.
func normalizeTitle(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
