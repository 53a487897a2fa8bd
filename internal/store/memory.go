// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// Memory is an ephemeral Store backend for tests and cache-only runs.
type Memory struct {
	mu   sync.RWMutex
	rows map[freestuff.GameID]Announcement
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rows: make(map[freestuff.GameID]Announcement)}
}

func (m *Memory) Upsert(_ context.Context, anns []Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range anns {
		if existing, ok := m.rows[a.ID]; ok {
			a.FirstSeen = existing.FirstSeen
			if !a.Active {
				a.EndedAt = existing.EndedAt
			}
		}
		if a.Active {
			a.EndedAt = nil
		}
		m.rows[a.ID] = a
	}
	return nil
}

func (m *Memory) Get(_ context.Context, id freestuff.GameID) (*Announcement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneAnnouncement(a)
	return &out, nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]Announcement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	query := normalizeTitle(f.Query)

	var out []Announcement
	for _, a := range m.rows {
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		if f.Store != "" && string(a.Store) != f.Store {
			continue
		}
		if f.Kind != "" && string(a.Kind) != f.Kind {
			continue
		}
		if f.ActiveOnly && !a.Active {
			continue
		}
		if query != "" && !strings.Contains(normalizeTitle(a.Title), query) {
			continue
		}
		out = append(out, cloneAnnouncement(a))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func (m *Memory) MarkEnded(_ context.Context, ids []freestuff.GameID, endedAt time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, id := range ids {
		a, ok := m.rows[id]
		if !ok || !a.Active {
			continue
		}
		a.Active = false
		t := endedAt
		a.EndedAt = &t
		m.rows[id] = a
		count++
	}
	return count, nil
}

func (m *Memory) IDs(_ context.Context) (map[freestuff.GameID]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make(map[freestuff.GameID]struct{}, len(m.rows))
	for id := range m.rows {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *Memory) Prune(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, a := range m.rows {
		if !a.Active && a.EndedAt != nil && a.EndedAt.Before(olderThan) {
			delete(m.rows, id)
			count++
		}
	}
	return count, nil
}

func (m *Memory) Close() error { return nil }

// cloneAnnouncement detaches shared pointers so callers cannot mutate the
// stored row.
func cloneAnnouncement(a Announcement) Announcement {
	if a.EndedAt != nil {
		t := *a.EndedAt
		a.EndedAt = &t
	}
	return a
}
