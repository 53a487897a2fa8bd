// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// Loader assembles an AppConfig from defaults, an optional YAML file and
// FSA_-prefixed environment variables, in that order of increasing
// precedence.
type Loader struct {
	configPath string
	version    string

	// ConsumedEnvKeys records every environment key the loader looked at,
	// for startup diagnostics.
	ConsumedEnvKeys []string
}

// NewLoader creates a Loader. configPath may be empty, in which case only
// defaults and environment variables apply.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load builds the effective configuration and validates it.
func (l *Loader) Load() (*AppConfig, error) {
	cfg := defaultConfig()

	if l.configPath != "" {
		if err := l.loadFile(cfg); err != nil {
			return nil, err
		}
	}

	l.mergeEnv(cfg)

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the config file path the loader reads, if any.
func (l *Loader) Path() string { return l.configPath }

func defaultConfig() *AppConfig {
	return &AppConfig{
		BaseURL:          freestuff.DefaultBaseURL,
		ClientRPS:        2.0,
		ClientBurst:      4,
		BreakerThreshold: 5,
		BreakerReset:     30 * time.Second,

		DataDir:   "./data",
		FeedPath:  "freebies.json",
		StorePath: "freestuff.db",

		ListenAddr:         ":8080",
		RateLimitPerMinute: 120,

		Categories:        []string{"free"},
		RefreshInterval:   15 * time.Minute,
		RefreshJitter:     time.Minute,
		DetailConcurrency: 2,
		DetailRetries:     2,

		CacheBackend: CacheMemory,
		CacheTTL:     30 * time.Minute,
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},

		StoreBackend: StoreSQLite,

		MetricsEnabled: true,
		MetricsAddr:    ":9090",

		LogLevel:   "info",
		LogService: "freestuffd",

		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
			Retries: 2,
		},

		Tracing: TracingConfig{
			Exporter:    "grpc",
			SampleRate:  1.0,
			Environment: "production",
		},
	}
}

// loadFile reads the YAML config file in strict mode: unknown fields and
// trailing documents are errors so typos fail fast instead of being
// silently ignored.
func (l *Loader) loadFile(cfg *AppConfig) error {
	f, err := os.Open(l.configPath) // #nosec G304 -- path comes from operator flag/env
	if err != nil {
		return fmt.Errorf("config: open %s: %w", l.configPath, err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var fc FileConfig
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: nothing to merge.
			return nil
		}
		return fmt.Errorf("config: parse %s: %w", l.configPath, err)
	}

	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: %s contains multiple documents or trailing content", l.configPath)
	}

	return applyFileConfig(cfg, &fc)
}

// applyFileConfig copies set file fields onto cfg. Pointer fields distinguish
// "absent" from zero values; duration fields are strings parsed here so a
// malformed value fails the load instead of degrading to a default.
func applyFileConfig(cfg *AppConfig, fc *FileConfig) error {
	parseDur := func(field, s string) (time.Duration, error) {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("config: invalid %s %q: %w", field, s, err)
		}
		return d, nil
	}

	if fc.API.Key != "" {
		cfg.APIKey = fc.API.Key
	}
	if fc.API.BaseURL != "" {
		cfg.BaseURL = fc.API.BaseURL
	}
	if fc.API.UserAgent != "" {
		cfg.UserAgent = fc.API.UserAgent
	}
	if fc.API.RateLimit != nil {
		cfg.ClientRPS = *fc.API.RateLimit
	}
	if fc.API.RateBurst != 0 {
		cfg.ClientBurst = fc.API.RateBurst
	}
	if fc.API.BreakerThreshold != 0 {
		cfg.BreakerThreshold = fc.API.BreakerThreshold
	}
	if fc.API.BreakerReset != "" {
		d, err := parseDur("api.breaker_reset", fc.API.BreakerReset)
		if err != nil {
			return err
		}
		cfg.BreakerReset = d
	}

	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.FeedPath != "" {
		cfg.FeedPath = fc.FeedPath
	}

	if fc.Server.Listen != "" {
		cfg.ListenAddr = fc.Server.Listen
	}
	if fc.Server.Token != "" {
		cfg.APIToken = fc.Server.Token
	}
	if fc.Server.Anonymous != nil {
		cfg.AuthAnonymous = *fc.Server.Anonymous
	}
	if len(fc.Server.CORSOrigins) > 0 {
		cfg.CORSOrigins = fc.Server.CORSOrigins
	}
	if fc.Server.RateLimitPerMinute != 0 {
		cfg.RateLimitPerMinute = fc.Server.RateLimitPerMinute
	}

	if len(fc.Refresh.Categories) > 0 {
		cfg.Categories = fc.Refresh.Categories
	}
	if fc.Refresh.Interval != "" {
		d, err := parseDur("refresh.interval", fc.Refresh.Interval)
		if err != nil {
			return err
		}
		cfg.RefreshInterval = d
	}
	if fc.Refresh.Jitter != "" {
		d, err := parseDur("refresh.jitter", fc.Refresh.Jitter)
		if err != nil {
			return err
		}
		cfg.RefreshJitter = d
	}
	if fc.Refresh.DetailConcurrency != 0 {
		cfg.DetailConcurrency = fc.Refresh.DetailConcurrency
	}
	if fc.Refresh.DetailRetries != nil {
		cfg.DetailRetries = *fc.Refresh.DetailRetries
	}

	if fc.Cache.Backend != "" {
		cfg.CacheBackend = fc.Cache.Backend
	}
	if fc.Cache.TTL != "" {
		d, err := parseDur("cache.ttl", fc.Cache.TTL)
		if err != nil {
			return err
		}
		cfg.CacheTTL = d
	}
	if fc.Cache.Redis.Addr != "" {
		cfg.Redis.Addr = fc.Cache.Redis.Addr
	}
	if fc.Cache.Redis.Password != "" {
		cfg.Redis.Password = fc.Cache.Redis.Password
	}
	if fc.Cache.Redis.DB != nil {
		cfg.Redis.DB = *fc.Cache.Redis.DB
	}

	if fc.Store.Backend != "" {
		cfg.StoreBackend = fc.Store.Backend
	}
	if fc.Store.Path != "" {
		cfg.StorePath = fc.Store.Path
	}

	if fc.Metrics.Enabled != nil {
		cfg.MetricsEnabled = *fc.Metrics.Enabled
	}
	if fc.Metrics.Listen != "" {
		cfg.MetricsAddr = fc.Metrics.Listen
	}

	if fc.Log.Level != "" {
		cfg.LogLevel = fc.Log.Level
	}
	if fc.Log.Service != "" {
		cfg.LogService = fc.Log.Service
	}

	if len(fc.Notify.URLs) > 0 {
		cfg.Notify.URLs = fc.Notify.URLs
	}
	if len(fc.Notify.AllowedHosts) > 0 {
		cfg.Notify.AllowedHosts = fc.Notify.AllowedHosts
	}
	if fc.Notify.AllowInsecure != nil {
		cfg.Notify.AllowInsecure = *fc.Notify.AllowInsecure
	}
	if fc.Notify.Timeout != "" {
		d, err := parseDur("notify.timeout", fc.Notify.Timeout)
		if err != nil {
			return err
		}
		cfg.Notify.Timeout = d
	}
	if fc.Notify.Retries != nil {
		cfg.Notify.Retries = *fc.Notify.Retries
	}

	if fc.Webhook.Secret != "" {
		cfg.WebhookSecret = fc.Webhook.Secret
	}

	if fc.Tracing.Enabled != nil {
		cfg.Tracing.Enabled = *fc.Tracing.Enabled
	}
	if fc.Tracing.Exporter != "" {
		cfg.Tracing.Exporter = fc.Tracing.Exporter
	}
	if fc.Tracing.Endpoint != "" {
		cfg.Tracing.Endpoint = fc.Tracing.Endpoint
	}
	if fc.Tracing.Insecure != nil {
		cfg.Tracing.Insecure = *fc.Tracing.Insecure
	}
	if fc.Tracing.SampleRate != nil {
		cfg.Tracing.SampleRate = *fc.Tracing.SampleRate
	}
	if fc.Tracing.Environment != "" {
		cfg.Tracing.Environment = fc.Tracing.Environment
	}

	return nil
}

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys = append(l.ConsumedEnvKeys, key)
	return ParseString(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys = append(l.ConsumedEnvKeys, key)
	return ParseInt(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys = append(l.ConsumedEnvKeys, key)
	return ParseBool(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys = append(l.ConsumedEnvKeys, key)
	return ParseDuration(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys = append(l.ConsumedEnvKeys, key)
	return ParseFloat(key, def)
}

func (l *Loader) envList(key string, def []string) []string {
	l.ConsumedEnvKeys = append(l.ConsumedEnvKeys, key)
	return ParseList(key, def)
}

// mergeEnv overlays FSA_ environment variables onto cfg. Each parser gets
// the current value as its default, so unset variables change nothing.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	// FSA_API is the legacy alias; FSA_API_KEY wins when both are set.
	cfg.APIKey = l.envString("FSA_API", cfg.APIKey)
	cfg.APIKey = l.envString("FSA_API_KEY", cfg.APIKey)
	cfg.BaseURL = l.envString("FSA_BASE_URL", cfg.BaseURL)
	cfg.UserAgent = l.envString("FSA_USER_AGENT", cfg.UserAgent)
	cfg.ClientRPS = l.envFloat("FSA_CLIENT_RPS", cfg.ClientRPS)
	cfg.ClientBurst = l.envInt("FSA_CLIENT_BURST", cfg.ClientBurst)
	cfg.BreakerThreshold = l.envInt("FSA_BREAKER_THRESHOLD", cfg.BreakerThreshold)
	cfg.BreakerReset = l.envDuration("FSA_BREAKER_RESET", cfg.BreakerReset)

	cfg.DataDir = l.envString("FSA_DATA_DIR", cfg.DataDir)
	cfg.FeedPath = l.envString("FSA_FEED_PATH", cfg.FeedPath)

	cfg.ListenAddr = l.envString("FSA_LISTEN", cfg.ListenAddr)
	cfg.APIToken = l.envString("FSA_API_TOKEN", cfg.APIToken)
	cfg.AuthAnonymous = l.envBool("FSA_AUTH_ANONYMOUS", cfg.AuthAnonymous)
	cfg.CORSOrigins = l.envList("FSA_CORS_ORIGINS", cfg.CORSOrigins)
	cfg.RateLimitPerMinute = l.envInt("FSA_RATE_LIMIT", cfg.RateLimitPerMinute)

	cfg.Categories = l.envList("FSA_CATEGORIES", cfg.Categories)
	cfg.RefreshInterval = l.envDuration("FSA_REFRESH_INTERVAL", cfg.RefreshInterval)
	cfg.RefreshJitter = l.envDuration("FSA_REFRESH_JITTER", cfg.RefreshJitter)
	cfg.DetailConcurrency = l.envInt("FSA_DETAIL_CONCURRENCY", cfg.DetailConcurrency)
	cfg.DetailRetries = l.envInt("FSA_DETAIL_RETRIES", cfg.DetailRetries)

	cfg.CacheBackend = l.envString("FSA_CACHE_BACKEND", cfg.CacheBackend)
	cfg.CacheTTL = l.envDuration("FSA_CACHE_TTL", cfg.CacheTTL)
	cfg.Redis.Addr = l.envString("FSA_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = l.envString("FSA_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = l.envInt("FSA_REDIS_DB", cfg.Redis.DB)

	cfg.StoreBackend = l.envString("FSA_STORE_BACKEND", cfg.StoreBackend)
	cfg.StorePath = l.envString("FSA_STORE_PATH", cfg.StorePath)

	cfg.MetricsEnabled = l.envBool("FSA_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsAddr = l.envString("FSA_METRICS_LISTEN", cfg.MetricsAddr)

	cfg.LogLevel = l.envString("FSA_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("FSA_LOG_SERVICE", cfg.LogService)

	cfg.Notify.URLs = l.envList("FSA_NOTIFY_URLS", cfg.Notify.URLs)
	cfg.Notify.AllowedHosts = l.envList("FSA_NOTIFY_ALLOWED_HOSTS", cfg.Notify.AllowedHosts)
	cfg.Notify.AllowInsecure = l.envBool("FSA_NOTIFY_ALLOW_INSECURE", cfg.Notify.AllowInsecure)
	cfg.Notify.Timeout = l.envDuration("FSA_NOTIFY_TIMEOUT", cfg.Notify.Timeout)
	cfg.Notify.Retries = l.envInt("FSA_NOTIFY_RETRIES", cfg.Notify.Retries)

	cfg.WebhookSecret = l.envString("FSA_WEBHOOK_SECRET", cfg.WebhookSecret)

	cfg.Tracing.Enabled = l.envBool("FSA_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString("FSA_TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString("FSA_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.Insecure = l.envBool("FSA_TRACING_INSECURE", cfg.Tracing.Insecure)
	cfg.Tracing.SampleRate = l.envFloat("FSA_TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)
	cfg.Tracing.Environment = l.envString("FSA_TRACING_ENVIRONMENT", cfg.Tracing.Environment)
}
