// SPDX-License-Identifier: MIT

// Package config provides configuration management for freestuffd.
// Precedence is ENV > file > defaults, with strict YAML parsing and
// atomic hot reload.
package config

import (
	"time"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// RedisConfig holds the Redis cache backend settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NotifyConfig holds the downstream webhook fan-out settings.
type NotifyConfig struct {
	// URLs receive a JSON payload for every newly discovered freebie.
	// Empty disables notifications.
	URLs []string

	// AllowedHosts restricts deliveries to these hosts (IDNA-normalized
	// exact match). Empty allows any host that passes the scheme policy.
	AllowedHosts []string

	// AllowInsecure permits plain http targets. Default is https only.
	AllowInsecure bool

	Timeout time.Duration
	Retries int
}

// TracingConfig holds the OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool
	Exporter    string // grpc | http
	Endpoint    string
	Insecure    bool
	SampleRate  float64
	Environment string
}

// AppConfig is the fully resolved daemon configuration.
type AppConfig struct {
	// Upstream FreeStuff API client
	APIKey           string
	BaseURL          string
	UserAgent        string
	ClientRPS        float64 // upstream request budget per second
	ClientBurst      int
	BreakerThreshold int
	BreakerReset     time.Duration

	// Filesystem layout. FeedPath and StorePath are relative to DataDir.
	DataDir   string
	FeedPath  string
	StorePath string

	// HTTP API server
	ListenAddr         string
	APIToken           string
	AuthAnonymous      bool
	CORSOrigins        []string
	RateLimitPerMinute int

	// Refresh job
	Categories        []string
	RefreshInterval   time.Duration
	RefreshJitter     time.Duration
	DetailConcurrency int
	DetailRetries     int

	// Cache
	CacheBackend string
	CacheTTL     time.Duration
	Redis        RedisConfig

	// Persistence
	StoreBackend string

	// Metrics
	MetricsEnabled bool
	MetricsAddr    string

	// Logging
	LogLevel   string
	LogService string

	// Downstream notifications and upstream webhook ingest
	Notify        NotifyConfig
	WebhookSecret string

	Tracing TracingConfig

	// Version is stamped by the binary, never by file or env.
	Version string
}

// FileConfig is the YAML file schema. Pointer fields distinguish "absent"
// from zero values during merge.
type FileConfig struct {
	API struct {
		Key              string   `yaml:"key,omitempty"`
		BaseURL          string   `yaml:"base_url,omitempty"`
		UserAgent        string   `yaml:"user_agent,omitempty"`
		RateLimit        *float64 `yaml:"rate_limit,omitempty"`
		RateBurst        int      `yaml:"rate_burst,omitempty"`
		BreakerThreshold int      `yaml:"breaker_threshold,omitempty"`
		BreakerReset     string   `yaml:"breaker_reset,omitempty"`
	} `yaml:"api,omitempty"`

	DataDir  string `yaml:"data_dir,omitempty"`
	FeedPath string `yaml:"feed_path,omitempty"`

	Server struct {
		Listen             string   `yaml:"listen,omitempty"`
		Token              string   `yaml:"token,omitempty"`
		Anonymous          *bool    `yaml:"anonymous,omitempty"`
		CORSOrigins        []string `yaml:"cors_origins,omitempty"`
		RateLimitPerMinute int      `yaml:"rate_limit_per_minute,omitempty"`
	} `yaml:"server,omitempty"`

	Refresh struct {
		Categories        []string `yaml:"categories,omitempty"`
		Interval          string   `yaml:"interval,omitempty"`
		Jitter            string   `yaml:"jitter,omitempty"`
		DetailConcurrency int      `yaml:"detail_concurrency,omitempty"`
		DetailRetries     *int     `yaml:"detail_retries,omitempty"`
	} `yaml:"refresh,omitempty"`

	Cache struct {
		Backend string `yaml:"backend,omitempty"`
		TTL     string `yaml:"ttl,omitempty"`
		Redis   struct {
			Addr     string `yaml:"addr,omitempty"`
			Password string `yaml:"password,omitempty"`
			DB       *int   `yaml:"db,omitempty"`
		} `yaml:"redis,omitempty"`
	} `yaml:"cache,omitempty"`

	Store struct {
		Backend string `yaml:"backend,omitempty"`
		Path    string `yaml:"path,omitempty"`
	} `yaml:"store,omitempty"`

	Metrics struct {
		Enabled *bool  `yaml:"enabled,omitempty"`
		Listen  string `yaml:"listen,omitempty"`
	} `yaml:"metrics,omitempty"`

	Log struct {
		Level   string `yaml:"level,omitempty"`
		Service string `yaml:"service,omitempty"`
	} `yaml:"log,omitempty"`

	Notify struct {
		URLs          []string `yaml:"urls,omitempty"`
		AllowedHosts  []string `yaml:"allowed_hosts,omitempty"`
		AllowInsecure *bool    `yaml:"allow_insecure,omitempty"`
		Timeout       string   `yaml:"timeout,omitempty"`
		Retries       *int     `yaml:"retries,omitempty"`
	} `yaml:"notify,omitempty"`

	Webhook struct {
		Secret string `yaml:"secret,omitempty"`
	} `yaml:"webhook,omitempty"`

	Tracing struct {
		Enabled     *bool    `yaml:"enabled,omitempty"`
		Exporter    string   `yaml:"exporter,omitempty"`
		Endpoint    string   `yaml:"endpoint,omitempty"`
		Insecure    *bool    `yaml:"insecure,omitempty"`
		SampleRate  *float64 `yaml:"sample_rate,omitempty"`
		Environment string   `yaml:"environment,omitempty"`
	} `yaml:"tracing,omitempty"`
}
