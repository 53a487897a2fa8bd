// SPDX-License-Identifier: MIT

// Package cache provides TTL caching for game details so API reads and
// refresh cycles do not hammer the upstream API.
package cache

import (
	"sync"
	"time"

	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// Cache provides thread-safe game detail caching with expiration support.
type Cache interface {
	// Get retrieves a game from the cache. Returns false if not found or
	// expired.
	Get(key string) (*freestuff.GameInfo, bool)
	// Set stores a game in the cache with the specified TTL.
	Set(key string, game *freestuff.GameInfo, ttl time.Duration)
	// Delete removes a game from the cache.
	Delete(key string)
	// Clear removes all entries from the cache.
	Clear()
	// Stats returns cache statistics.
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64 // expired entries removed by the janitor
	CurrentSize int
}

// Key builds the cache key for a game ID.
func Key(id freestuff.GameID) string {
	return "game:" + id.String()
}

type entry struct {
	game       *freestuff.GameInfo
	expiration time.Time
}

func (e *entry) isExpired() bool {
	return time.Now().After(e.expiration)
}

// Memory is an in-memory Cache with a background janitor that removes
// expired entries.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   Stats
	janitor *janitor
}

// NewMemory creates an in-memory cache. A positive cleanupInterval starts
// a janitor goroutine; call Stop to end it.
func NewMemory(cleanupInterval time.Duration) *Memory {
	c := &Memory{
		entries: make(map[string]*entry),
	}

	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}

	return c
}

// Get retrieves a game from the cache.
func (c *Memory) Get(key string) (*freestuff.GameInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.isExpired() {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	return e.game, true
}

// Set stores a game in the cache.
func (c *Memory) Set(key string, game *freestuff.GameInfo, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		game:       game,
		expiration: time.Now().Add(ttl),
	}
	c.stats.Sets++
}

// Delete removes a game from the cache.
func (c *Memory) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Stats returns cache statistics.
func (c *Memory) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

// deleteExpired removes all expired entries and returns how many were
// dropped.
func (c *Memory) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.isExpired() {
			delete(c.entries, key)
			count++
		}
	}

	c.stats.Evictions += int64(count)
	return count
}

// Stop terminates the janitor goroutine. Safe to call more than once.
func (c *Memory) Stop() {
	if c.janitor != nil {
		c.janitor.once.Do(func() { close(c.janitor.stop) })
	}
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

func (j *janitor) run(c *Memory) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// Noop is a cache that caches nothing, for deployments that disable caching.
type Noop struct{}

// NewNoop creates a cache that never stores anything.
func NewNoop() Noop { return Noop{} }

func (Noop) Get(string) (*freestuff.GameInfo, bool)           { return nil, false }
func (Noop) Set(string, *freestuff.GameInfo, time.Duration)   {}
func (Noop) Delete(string)                                    {}
func (Noop) Clear()                                           {}
func (Noop) Stats() Stats                                     { return Stats{} }
