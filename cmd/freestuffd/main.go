// SPDX-License-Identifier: MIT

// freestuffd polls the FreeStuff API for free-game announcements, persists
// them, serves them over HTTP and notifies downstream webhooks.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mibmo/freestuffapi-go/internal/api"
	"github.com/mibmo/freestuffapi-go/internal/cache"
	"github.com/mibmo/freestuffapi-go/internal/config"
	"github.com/mibmo/freestuffapi-go/internal/daemon"
	"github.com/mibmo/freestuffapi-go/internal/health"
	"github.com/mibmo/freestuffapi-go/internal/jobs"
	fsalog "github.com/mibmo/freestuffapi-go/internal/log"
	"github.com/mibmo/freestuffapi-go/internal/metrics"
	"github.com/mibmo/freestuffapi-go/internal/notify"
	"github.com/mibmo/freestuffapi-go/internal/store"
	"github.com/mibmo/freestuffapi-go/internal/telemetry"
	"github.com/mibmo/freestuffapi-go/internal/version"
	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsed.User = nil
	return parsed.String()
}

// resolveDataPath anchors rel under dataDir unless it is already absolute.
func resolveDataPath(dataDir, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(dataDir, rel)
}

// jobsConfig derives the refresh settings from the loaded configuration.
func jobsConfig(cfg config.AppConfig) jobs.Config {
	return jobs.Config{
		Categories:        cfg.Categories,
		DetailConcurrency: cfg.DetailConcurrency,
		DetailRetries:     cfg.DetailRetries,
		FeedPath:          resolveDataPath(cfg.DataDir, cfg.FeedPath),
		CacheTTL:          cfg.CacheTTL,
		Interval:          cfg.RefreshInterval,
		Jitter:            cfg.RefreshJitter,
	}
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	validateOnly := flag.Bool("validate", false, "load and validate configuration, then exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded.
	fsalog.Configure(fsalog.Config{
		Level:   "info",
		Service: "freestuffd",
		Version: version.Version,
	})
	logger := fsalog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Determine config path:
	// - Explicit via --config
	// - Otherwise auto-load ${FSA_DATA_DIR}/config.yaml if it exists
	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := explicitConfigPath
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("FSA_DATA_DIR", "./data"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	// Load configuration with precedence: ENV > File > Defaults.
	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	if *validateOnly {
		fmt.Println("✓ configuration is valid")
		os.Exit(0)
	}

	// Re-configure logger with loaded configuration.
	fsalog.Configure(fsalog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})

	switch {
	case explicitConfigPath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", explicitConfigPath).
			Msg("loaded configuration from file")
	case effectiveConfigPath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file(auto)").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	default:
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	// The daemon cannot poll without credentials. Validate-only mode above
	// deliberately works without them.
	if strings.TrimSpace(cfg.APIKey) == "" {
		logger.Fatal().
			Str("event", "startup.missing_api_key").
			Msg("FSA_API_KEY is required; get a key from the FreeStuff API portal")
	}

	if err := health.PerformStartupChecks(ctx, *cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	serverCfg := config.ParseServerConfigForApp(*cfg)

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", serverCfg.ListenAddr).
		Msg("starting freestuffd")

	logger.Info().Msgf("→ Upstream: %s (rps: %.1f, burst: %d)", maskURL(cfg.BaseURL), cfg.ClientRPS, cfg.ClientBurst)
	logger.Info().Msgf("→ Categories: %s every %s", strings.Join(cfg.Categories, ", "), cfg.RefreshInterval)
	logger.Info().Msgf("→ Store: %s, cache: %s", cfg.StoreBackend, cfg.CacheBackend)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	if cfg.APIToken == "" && !cfg.AuthAnonymous {
		logger.Warn().
			Str("security", "weak").
			Msg("→ API token: NOT configured. Set FSA_API_TOKEN or FSA_AUTH_ANONYMOUS=true.")
	}

	// Tracing is optional; a failed exporter setup is fatal only when
	// tracing was explicitly requested.
	var tracing *telemetry.Provider
	if cfg.Tracing.Enabled {
		tracing, err = telemetry.NewProvider(ctx, telemetry.Config{
			Enabled:        true,
			ServiceName:    cfg.LogService,
			ServiceVersion: version.Version,
			Environment:    cfg.Tracing.Environment,
			ExporterType:   cfg.Tracing.Exporter,
			Endpoint:       cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
			SamplingRate:   cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "telemetry.init_failed").
				Msg("failed to initialize tracing")
		}
	}

	// The client library carries no metrics imports; the daemon re-attaches
	// them through the breaker callback and the limiter wait observer.
	breaker := freestuff.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerReset)
	breaker.OnStateChange(func(_, to freestuff.State) {
		metrics.SetCircuitBreakerState("freestuff", to.String())
		if to == freestuff.StateOpen {
			metrics.RecordCircuitBreakerTrip("freestuff")
		}
	})

	client, err := freestuff.New(cfg.APIKey,
		freestuff.WithBaseURL(cfg.BaseURL),
		freestuff.WithUserAgent(cfg.UserAgent),
		freestuff.WithLogger(fsalog.WithComponent("freestuff")),
		freestuff.WithRateLimit(cfg.ClientRPS, cfg.ClientBurst),
		freestuff.WithWaitObserver(metrics.ObserveRatelimitWait),
		freestuff.WithCircuitBreaker(breaker),
	)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "client.init_failed").
			Msg("failed to build upstream client")
	}

	var st store.Store
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		st, err = store.NewSQLite(resolveDataPath(cfg.DataDir, cfg.StorePath))
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "store.init_failed").
				Msg("failed to open sqlite store")
		}
	default:
		st = store.NewMemory()
	}

	var gameCache cache.Cache
	switch cfg.CacheBackend {
	case config.CacheRedis:
		redisCache, rerr := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, fsalog.WithComponent("cache"))
		if rerr != nil {
			logger.Fatal().
				Err(rerr).
				Str("event", "cache.init_failed").
				Msg("failed to connect to redis")
		}
		gameCache = redisCache
	case config.CacheNone:
		gameCache = cache.NewNoop()
	default:
		// Janitor sweep at the TTL cadence keeps the map bounded between
		// refresh cycles.
		gameCache = cache.NewMemory(cfg.CacheTTL)
	}

	notifier := notify.New(notify.Config{
		URLs:          cfg.Notify.URLs,
		AllowedHosts:  cfg.Notify.AllowedHosts,
		AllowInsecure: cfg.Notify.AllowInsecure,
		Timeout:       cfg.Notify.Timeout,
		Retries:       cfg.Notify.Retries,
	})

	refresher := jobs.NewRefresher(client, st, gameCache, notifier, jobsConfig(*cfg))
	runner := jobs.NewRunner(refresher)

	healthMgr := health.NewManager(version.Version)
	healthMgr.RegisterChecker(health.NewWritableDirChecker("data_dir", cfg.DataDir))
	healthMgr.RegisterChecker(health.NewFileChecker("feed", resolveDataPath(cfg.DataDir, cfg.FeedPath)))
	healthMgr.RegisterChecker(health.NewPingChecker("upstream", false, 5*time.Second, client.Ping))
	healthMgr.RegisterChecker(health.NewLastRefreshChecker(func() (time.Time, string) {
		s := runner.Status()
		return s.LastRun, s.Error
	}, 3*cfg.RefreshInterval))
	if redisCache, ok := gameCache.(*cache.Redis); ok {
		healthMgr.RegisterChecker(health.NewPingChecker("redis", true, 2*time.Second, redisCache.HealthCheck))
	}

	apiServer, err := api.New(*cfg, api.Deps{
		Runner:  runner,
		Store:   st,
		Cache:   gameCache,
		Fetcher: client,
		Health:  healthMgr,
		Version: version.Version,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "api.init_failed").
			Msg("failed to build API server")
	}

	metricsAddr := ""
	if cfg.MetricsEnabled {
		metricsAddr = strings.TrimSpace(cfg.MetricsAddr)
		if metricsAddr == "" {
			metricsAddr = ":9090"
		}
	}

	mgr, err := daemon.NewManager(serverCfg, daemon.Deps{
		Logger:         logger,
		Config:         *cfg,
		APIHandler:     apiServer.Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    metricsAddr,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.init_failed").
			Msg("failed to build daemon manager")
	}

	// Hot reload: watch the config file, accept SIGHUP, and fan changes out
	// to the API server and the refresh runner. Listen address changes need
	// a restart.
	holder := config.NewHolder(*cfg, loader)
	if effectiveConfigPath != "" {
		if err := holder.StartWatcher(ctx); err != nil {
			logger.Warn().
				Err(err).
				Str("event", "config.watch_failed").
				Msg("config file watching disabled")
		}
	}
	holder.StartSignalHandler(ctx, syscall.SIGHUP)
	reloadCh := make(chan config.AppConfig, 1)
	holder.RegisterListener(reloadCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case newCfg := <-reloadCh:
				apiServer.UpdateConfig(newCfg)
				runner.Reconfigure(jobsConfig(newCfg))
				logger.Info().
					Str("event", "config.reloaded").
					Msg("applied reloaded configuration")
			}
		}
	}()

	// The runner owns its own lifetime via ctx; the shutdown hooks below
	// close what it writes to.
	go runner.Start(ctx)

	mgr.RegisterShutdownHook("config-watcher", func(context.Context) error {
		holder.Stop()
		return nil
	})
	if tracing != nil {
		mgr.RegisterShutdownHook("telemetry", tracing.Shutdown)
	}
	switch c := gameCache.(type) {
	case *cache.Memory:
		mgr.RegisterShutdownHook("cache", func(context.Context) error {
			c.Stop()
			return nil
		})
	case *cache.Redis:
		mgr.RegisterShutdownHook("cache", func(context.Context) error {
			return c.Close()
		})
	}
	mgr.RegisterShutdownHook("store", func(context.Context) error {
		return st.Close()
	})

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon exited with error")
	}

	logger.Info().Str("event", "shutdown.complete").Msg("freestuffd stopped")
}
