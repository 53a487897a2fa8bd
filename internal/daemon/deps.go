// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mibmo/freestuffapi-go/internal/config"
)

// Deps contains the dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon.
	Logger zerolog.Logger

	// Config is the loaded application configuration.
	Config config.AppConfig

	// APIHandler serves the main API listener.
	APIHandler http.Handler

	// MetricsHandler serves the Prometheus listener. Nil disables the
	// metrics server.
	MetricsHandler http.Handler

	// MetricsAddr is the metrics listen address. Empty disables the
	// metrics server even when a handler is set.
	MetricsAddr string
}

// Validate checks that the required dependencies are present.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
