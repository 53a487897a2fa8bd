// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mibmo/freestuffapi-go/internal/validate"
)

func validConfig(t *testing.T) *AppConfig {
	t.Helper()
	cfg := defaultConfig()
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *AppConfig)
		wantErr string // substring; empty means valid
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *AppConfig) {},
		},
		{
			name:    "unsupported base url scheme",
			mutate:  func(cfg *AppConfig) { cfg.BaseURL = "ftp://api.example.com" },
			wantErr: "api.base_url",
		},
		{
			name:    "zero client rps",
			mutate:  func(cfg *AppConfig) { cfg.ClientRPS = 0 },
			wantErr: "api.rate_limit",
		},
		{
			name:    "zero client burst",
			mutate:  func(cfg *AppConfig) { cfg.ClientBurst = 0 },
			wantErr: "api.rate_burst",
		},
		{
			name:    "zero breaker threshold",
			mutate:  func(cfg *AppConfig) { cfg.BreakerThreshold = 0 },
			wantErr: "api.breaker_threshold",
		},
		{
			name:    "zero breaker reset",
			mutate:  func(cfg *AppConfig) { cfg.BreakerReset = 0 },
			wantErr: "api.breaker_reset",
		},
		{
			name:    "listen address without port",
			mutate:  func(cfg *AppConfig) { cfg.ListenAddr = "localhost" },
			wantErr: "server.listen",
		},
		{
			name:    "rate limit out of range",
			mutate:  func(cfg *AppConfig) { cfg.RateLimitPerMinute = 20000 },
			wantErr: "server.rate_limit_per_minute",
		},
		{
			name:    "no categories",
			mutate:  func(cfg *AppConfig) { cfg.Categories = nil },
			wantErr: "refresh.categories",
		},
		{
			name:    "unknown category",
			mutate:  func(cfg *AppConfig) { cfg.Categories = []string{"weekly"} },
			wantErr: "refresh.categories",
		},
		{
			name:    "interval too short",
			mutate:  func(cfg *AppConfig) { cfg.RefreshInterval = 10 * time.Second },
			wantErr: "refresh.interval",
		},
		{
			name:    "interval too long",
			mutate:  func(cfg *AppConfig) { cfg.RefreshInterval = 48 * time.Hour },
			wantErr: "refresh.interval",
		},
		{
			name:    "jitter not below interval",
			mutate:  func(cfg *AppConfig) { cfg.RefreshJitter = cfg.RefreshInterval },
			wantErr: "refresh.jitter",
		},
		{
			name:    "detail concurrency too high",
			mutate:  func(cfg *AppConfig) { cfg.DetailConcurrency = 9 },
			wantErr: "refresh.detail_concurrency",
		},
		{
			name:    "detail retries too high",
			mutate:  func(cfg *AppConfig) { cfg.DetailRetries = 6 },
			wantErr: "refresh.detail_retries",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(cfg *AppConfig) { cfg.CacheBackend = "disk" },
			wantErr: "cache.backend",
		},
		{
			name:    "zero ttl with memory cache",
			mutate:  func(cfg *AppConfig) { cfg.CacheTTL = 0 },
			wantErr: "cache.ttl",
		},
		{
			name: "zero ttl fine when cache disabled",
			mutate: func(cfg *AppConfig) {
				cfg.CacheBackend = CacheNone
				cfg.CacheTTL = 0
			},
		},
		{
			name: "redis backend needs host and port",
			mutate: func(cfg *AppConfig) {
				cfg.CacheBackend = CacheRedis
				cfg.Redis.Addr = "localhost"
			},
			wantErr: "cache.redis.addr",
		},
		{
			name: "redis backend with valid addr",
			mutate: func(cfg *AppConfig) {
				cfg.CacheBackend = CacheRedis
				cfg.Redis.Addr = "localhost:6379"
			},
		},
		{
			name:    "unknown store backend",
			mutate:  func(cfg *AppConfig) { cfg.StoreBackend = "postgres" },
			wantErr: "store.backend",
		},
		{
			name:    "absolute store path",
			mutate:  func(cfg *AppConfig) { cfg.StorePath = "/var/lib/freestuff.db" },
			wantErr: "store.path",
		},
		{
			name:    "traversal in feed path",
			mutate:  func(cfg *AppConfig) { cfg.FeedPath = "../feed.json" },
			wantErr: "feed_path",
		},
		{
			name:    "bad metrics listen",
			mutate:  func(cfg *AppConfig) { cfg.MetricsAddr = "nope" },
			wantErr: "metrics.listen",
		},
		{
			name: "metrics listen ignored when disabled",
			mutate: func(cfg *AppConfig) {
				cfg.MetricsEnabled = false
				cfg.MetricsAddr = "nope"
			},
		},
		{
			name:    "unknown log level",
			mutate:  func(cfg *AppConfig) { cfg.LogLevel = "verbose" },
			wantErr: "log.level",
		},
		{
			name:    "empty log service",
			mutate:  func(cfg *AppConfig) { cfg.LogService = "" },
			wantErr: "log.service",
		},
		{
			name:    "malformed notify url",
			mutate:  func(cfg *AppConfig) { cfg.Notify.URLs = []string{"://nope"} },
			wantErr: "notify.urls",
		},
		{
			name:    "zero notify timeout",
			mutate:  func(cfg *AppConfig) { cfg.Notify.Timeout = 0 },
			wantErr: "notify.timeout",
		},
		{
			name: "tracing enabled needs endpoint",
			mutate: func(cfg *AppConfig) {
				cfg.Tracing.Enabled = true
			},
			wantErr: "tracing.endpoint",
		},
		{
			name: "tracing unknown exporter",
			mutate: func(cfg *AppConfig) {
				cfg.Tracing.Enabled = true
				cfg.Tracing.Endpoint = "collector:4317"
				cfg.Tracing.Exporter = "udp"
			},
			wantErr: "tracing.exporter",
		},
		{
			name: "tracing sample rate out of range",
			mutate: func(cfg *AppConfig) {
				cfg.Tracing.Enabled = true
				cfg.Tracing.Endpoint = "collector:4317"
				cfg.Tracing.SampleRate = 1.5
			},
			wantErr: "tracing.sample_rate",
		},
		{
			name: "tracing settings ignored when disabled",
			mutate: func(cfg *AppConfig) {
				cfg.Tracing.Exporter = "udp"
				cfg.Tracing.SampleRate = 1.5
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.LogLevel = "verbose"
	cfg.CacheBackend = "disk"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}

	var verr validate.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validate.ValidationError, got %T", err)
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(verr.Errors()), verr)
	}
	for _, want := range []string{"log.level", "cache.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}
