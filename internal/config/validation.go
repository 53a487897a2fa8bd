// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mibmo/freestuffapi-go/internal/validate"
)

var knownCategories = []string{"all", "approved", "free"}

// Validate checks the assembled configuration for consistency. It collects
// every violation instead of stopping at the first, so operators can fix a
// config file in one pass. The upstream API key is deliberately not checked
// here; the daemon entrypoint decides whether a missing key is fatal.
func Validate(cfg *AppConfig) error {
	v := validate.New()

	v.URL("api.base_url", cfg.BaseURL, []string{"http", "https"})
	if cfg.ClientRPS <= 0 {
		v.AddError("api.rate_limit", fmt.Sprintf("requests per second must be positive, got %g", cfg.ClientRPS), cfg.ClientRPS)
	}
	v.Positive("api.rate_burst", cfg.ClientBurst)
	v.Positive("api.breaker_threshold", cfg.BreakerThreshold)
	if cfg.BreakerReset <= 0 {
		v.AddError("api.breaker_reset", "reset window must be positive", cfg.BreakerReset.String())
	}

	v.Directory("data_dir", cfg.DataDir, false)
	v.Path("feed_path", cfg.FeedPath)

	listenAddr(v, "server.listen", cfg.ListenAddr)
	v.Range("server.rate_limit_per_minute", cfg.RateLimitPerMinute, 1, 10000)

	if len(cfg.Categories) == 0 {
		v.AddError("refresh.categories", "at least one category is required", cfg.Categories)
	}
	for _, c := range cfg.Categories {
		v.OneOf("refresh.categories", c, knownCategories)
	}
	if cfg.RefreshInterval < time.Minute || cfg.RefreshInterval > 24*time.Hour {
		v.AddError("refresh.interval",
			fmt.Sprintf("interval must be between 1m and 24h, got %s", cfg.RefreshInterval),
			cfg.RefreshInterval.String())
	}
	if cfg.RefreshJitter < 0 {
		v.AddError("refresh.jitter", "jitter cannot be negative", cfg.RefreshJitter.String())
	} else if cfg.RefreshJitter >= cfg.RefreshInterval {
		v.AddError("refresh.jitter",
			fmt.Sprintf("jitter %s must be shorter than interval %s", cfg.RefreshJitter, cfg.RefreshInterval),
			cfg.RefreshJitter.String())
	}
	v.Range("refresh.detail_concurrency", cfg.DetailConcurrency, 1, 8)
	v.Range("refresh.detail_retries", cfg.DetailRetries, 0, 5)

	v.OneOf("cache.backend", cfg.CacheBackend, []string{CacheMemory, CacheRedis, CacheNone})
	if cfg.CacheBackend != CacheNone && cfg.CacheTTL <= 0 {
		v.AddError("cache.ttl", "cache TTL must be positive", cfg.CacheTTL.String())
	}
	if cfg.CacheBackend == CacheRedis {
		v.HostPort("cache.redis.addr", cfg.Redis.Addr)
		v.NonNegative("cache.redis.db", cfg.Redis.DB)
	}

	v.OneOf("store.backend", cfg.StoreBackend, []string{StoreSQLite, StoreMemory})
	if cfg.StoreBackend == StoreSQLite {
		v.Path("store.path", cfg.StorePath)
	}

	if cfg.MetricsEnabled {
		listenAddr(v, "metrics.listen", cfg.MetricsAddr)
	}

	v.OneOf("log.level", cfg.LogLevel, []string{"trace", "debug", "info", "warn", "error"})
	v.Required("log.service", cfg.LogService)

	for _, u := range cfg.Notify.URLs {
		v.URL("notify.urls", u, []string{"http", "https"})
	}
	if cfg.Notify.Timeout <= 0 {
		v.AddError("notify.timeout", "timeout must be positive", cfg.Notify.Timeout.String())
	}
	v.Range("notify.retries", cfg.Notify.Retries, 0, 5)

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.Required("tracing.endpoint", cfg.Tracing.Endpoint)
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			v.AddError("tracing.sample_rate",
				fmt.Sprintf("sample rate must be between 0 and 1, got %g", cfg.Tracing.SampleRate),
				cfg.Tracing.SampleRate)
		}
	}

	return v.Err()
}

// listenAddr accepts ":8080" style addresses where HostPort would demand a
// host.
func listenAddr(v *validate.Validator, field, value string) {
	if value == "" {
		v.AddError(field, "listen address cannot be empty", value)
		return
	}
	_, portStr, err := net.SplitHostPort(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid listen address: %v", err), value)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid port %q", portStr), value)
		return
	}
	v.Port(field, port)
}
