// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mibmo/freestuffapi-go/internal/config"
	"github.com/mibmo/freestuffapi-go/internal/log"
)

// PerformStartupChecks validates the environment and dependencies before
// starting the daemon.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	// 1. Data Directory Permissions
	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}

	// 2. Targeted Validations
	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("✅ All startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("✓ Data directory is writable")
	return nil
}

// checkTargetedValidations performs security and runtime-critical validations
func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig) error {
	// a. Listen Addresses (Parseable)
	if err := checkListenAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("invalid API listen address %q: %w", cfg.ListenAddr, err)
	}
	logger.Info().Str("addr", cfg.ListenAddr).Msg("✓ API listen address is valid")

	if cfg.MetricsEnabled {
		if err := checkListenAddr(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("invalid metrics listen address %q: %w", cfg.MetricsAddr, err)
		}
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("✓ Metrics listen address is valid")
	}

	// b. Upstream Base URL (Syntax + Scheme)
	if cfg.BaseURL == "" {
		return fmt.Errorf("upstream base URL is empty; set FSA_BASE_URL or remove the override")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid FSA_BASE_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("FSA_BASE_URL scheme must be http or https, got: %s", u.Scheme)
	}
	logger.Info().Str("url", cfg.BaseURL).Msg("✓ Upstream base URL is valid")

	// c. Upstream API Key (Required)
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("upstream API key is not configured; set FSA_API_KEY")
	}
	logger.Info().Msg("✓ Upstream API key is configured")

	// d. Persistence safety
	if strings.EqualFold(cfg.StoreBackend, config.StoreMemory) {
		logger.Warn().
			Str("store_backend", cfg.StoreBackend).
			Msg("using in-memory store; announcements are not persistent across restarts")
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; feed and store may be lost on reboot")
	}

	// e. Webhook ingest
	if cfg.WebhookSecret == "" {
		logger.Warn().Msg("webhook secret not configured; upstream webhook ingest is disabled")
	}

	return nil
}

func checkListenAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("listen address is empty")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}
