// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/mibmo/freestuffapi-go/internal/auth"
	"github.com/mibmo/freestuffapi-go/internal/log"
)

// authMiddleware enforces API token authentication on mutating routes.
// With no token configured the middleware fails closed unless anonymous
// access is explicitly enabled.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		token := s.cfg.APIToken
		anon := s.cfg.AuthAnonymous
		s.mu.RUnlock()

		logger := log.WithComponentFromContext(r.Context(), "auth")

		if token == "" {
			if anon {
				next.ServeHTTP(w, r)
				return
			}
			// Fail closed by default.
			logger.Error().
				Str("event", "auth.fail_closed").
				Msg("FSA_API_TOKEN not set and FSA_AUTH_ANONYMOUS != true, denying access")
			writeUnauthorized(w)
			return
		}

		reqToken := auth.ExtractToken(r)
		if reqToken == "" {
			logger.Warn().
				Str("event", "auth.missing_token").
				Str("remote_addr", r.RemoteAddr).
				Msg("authorization token missing")
			writeUnauthorized(w)
			return
		}

		if !auth.AuthorizeToken(reqToken, token) {
			logger.Warn().
				Str("event", "auth.invalid_token").
				Str("remote_addr", r.RemoteAddr).
				Msg("invalid api token")
			writeUnauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}
