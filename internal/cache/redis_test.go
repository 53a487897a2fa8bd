// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr := miniredis.RunT(t)

	c := &Redis{
		client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		logger: zerolog.Nop(),
	}
	t.Cleanup(func() { _ = c.Close() })

	return mr, c
}

func TestRedis_SetGet(t *testing.T) {
	_, c := setupRedis(t)

	c.Set(Key(7392), sampleGame("Derelict Station"), 5*time.Minute)

	got, found := c.Get(Key(7392))
	if !found {
		t.Fatal("expected cached game")
	}
	if got.Title != "Derelict Station" {
		t.Errorf("Title = %q, want Derelict Station", got.Title)
	}
	if got.Store != freestuff.StoreSteam {
		t.Errorf("Store = %q, want steam", got.Store)
	}

	stats := c.Stats()
	if stats.Sets != 1 || stats.Hits != 1 {
		t.Errorf("stats = %+v, want 1 set and 1 hit", stats)
	}
}

func TestRedis_GetMissing(t *testing.T) {
	_, c := setupRedis(t)

	if _, found := c.Get(Key(404)); found {
		t.Error("expected miss for absent key")
	}
	if got := c.Stats().Misses; got != 1 {
		t.Errorf("Misses = %d, want 1", got)
	}
}

func TestRedis_TTL(t *testing.T) {
	mr, c := setupRedis(t)

	c.Set(Key(1), sampleGame("Timed"), time.Minute)

	if _, found := c.Get(Key(1)); !found {
		t.Fatal("expected game before expiry")
	}

	mr.FastForward(2 * time.Minute)

	if _, found := c.Get(Key(1)); found {
		t.Error("expected miss after TTL elapsed")
	}
}

func TestRedis_Delete(t *testing.T) {
	_, c := setupRedis(t)

	c.Set(Key(1), sampleGame("A"), time.Minute)
	c.Delete(Key(1))

	if _, found := c.Get(Key(1)); found {
		t.Error("expected deleted key to miss")
	}
}

func TestRedis_Clear(t *testing.T) {
	_, c := setupRedis(t)

	c.Set(Key(1), sampleGame("A"), time.Minute)
	c.Set(Key(2), sampleGame("B"), time.Minute)
	c.Clear()

	if got := c.Stats().CurrentSize; got != 0 {
		t.Errorf("CurrentSize = %d after Clear, want 0", got)
	}
}

func TestRedis_CorruptValue(t *testing.T) {
	mr, c := setupRedis(t)

	if err := mr.Set(Key(1), "{not json"); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}

	if _, found := c.Get(Key(1)); found {
		t.Error("corrupt value should read as a miss")
	}
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedis(RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedis() failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() failed: %v", err)
	}
}

func TestNewRedis_ConnectionFailure(t *testing.T) {
	_, err := NewRedis(RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected connection error, got nil")
	}
}
