// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// Endpoint class names. Each class gets its own httprate window and its
// own violation scope.
const (
	ScopeAuth    = "auth"
	ScopeLogin   = "login"
	ScopeWrite   = "write"
	ScopeDefault = "default"
	ScopeHealth  = "health"
	ScopeReports = "reports"
)

// ClassLimit describes one endpoint class window.
type ClassLimit struct {
	Scope    string
	Requests int
	Window   time.Duration
}

// DefaultClassLimits returns the built-in per-class windows.
func DefaultClassLimits() map[string]ClassLimit {
	return map[string]ClassLimit{
		ScopeAuth:    {Scope: ScopeAuth, Requests: 5, Window: time.Minute},
		ScopeLogin:   {Scope: ScopeLogin, Requests: 5, Window: 5 * time.Minute},
		ScopeWrite:   {Scope: ScopeWrite, Requests: 30, Window: time.Minute},
		ScopeDefault: {Scope: ScopeDefault, Requests: 100, Window: time.Minute},
		ScopeHealth:  {Scope: ScopeHealth, Requests: 1000, Window: time.Minute},
		ScopeReports: {Scope: ScopeReports, Requests: 10, Window: time.Minute},
	}
}

// ClassLimitsFromConfig returns the class windows with the default class
// overridden from configuration (RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW).
// Zero values keep the built-in default; the stricter classes are fixed.
func ClassLimitsFromConfig(defaultRequests int, defaultWindow time.Duration) map[string]ClassLimit {
	limits := DefaultClassLimits()
	def := limits[ScopeDefault]
	if defaultRequests > 0 {
		def.Requests = defaultRequests
	}
	if defaultWindow > 0 {
		def.Window = defaultWindow
	}
	limits[ScopeDefault] = def
	return limits
}

// Limit returns an httprate middleware for one endpoint class. Rejected
// requests are recorded as violations so repeat offenders escalate to a
// block. With rate limiting disabled (DISABLE_RATE_LIMIT) the middleware
// is a passthrough; existing blocks are still enforced by Guard.
func (b *Blocker) Limit(limit ClassLimit) func(http.Handler) http.Handler {
	if b.cfg.Disabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		limit.Requests,
		limit.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(b.onLimit(limit.Scope)),
	)
}

// onLimit handles a request rejected by an httprate window.
func (b *Blocker) onLimit(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.RateLimitHits.WithLabelValues(scope).Inc()

		ip := clientIP(r)
		if ip != "" {
			if _, err := b.RecordViolation(r.Context(), ip, scope); err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Str("ip", ip).Msg("Failed to record rate limit violation")
			}
		}

		// httprate has already set Retry-After for the window.
		writeRateLimited(w, r, "Too many requests, please slow down", nil)
	}
}

// Guard rejects requests from blocked IPs before routing. Mount after
// the trusted-proxy address resolver so RemoteAddr is the real client
// and forwarded headers from untrusted peers cannot dodge a block.
func (b *Blocker) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip == "" {
			// Unparseable addresses are never blocked.
			next.ServeHTTP(w, r)
			return
		}

		block, err := b.Check(r.Context(), ip)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Str("ip", ip).Msg("Block store lookup failed")
			next.ServeHTTP(w, r)
			return
		}
		if block == nil {
			next.ServeHTTP(w, r)
			return
		}

		metrics.BlockedRequestsRejected.Inc()
		retryAfter := int(time.Until(block.BlockedUntil).Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeRateLimited(w, r, "Access temporarily blocked", map[string]interface{}{
			"retry_after_seconds": retryAfter,
		})
	})
}

// writeRateLimited sends the 429 envelope.
func writeRateLimited(w http.ResponseWriter, r *http.Request, message string, details map[string]interface{}) {
	resp := models.APIResponse{
		Success: false,
		Error: &models.APIError{
			Code:    models.ErrCodeRateLimited,
			Message: message,
			Details: details,
		},
		Meta: models.Meta{
			CorrelationID: logging.CorrelationIDFromContext(r.Context()),
			Timestamp:     time.Now().UTC(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode rate limit response")
	}
}

// clientIP extracts and validates the client IP from RemoteAddr. Returns
// "" for unparseable addresses so they can never trip the block path.
func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}
