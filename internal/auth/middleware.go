// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package auth

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
)

// Browser cookie names. The session cookie is HttpOnly; the CSRF cookie
// is readable so clients can echo the token in X-CSRF-Token.
const (
	SessionCookieName = "custodia_session"
	CSRFCookieName    = "custodia_csrf"
)

// Middleware authenticates requests with a Bearer access token, or with
// the session cookie for browser clients, and puts the session in the
// request context. Unauthenticated requests get a 401 envelope.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			session *Session
			err     error
		)
		if token := bearerToken(r); token != "" {
			session, err = s.Authenticate(r.Context(), token, requestIP(r), r.UserAgent())
		} else if cookie, cerr := r.Cookie(SessionCookieName); cerr == nil && cookie.Value != "" {
			session, err = s.AuthenticateSession(r.Context(), cookie.Value, requestIP(r), r.UserAgent())
		} else {
			writeAuthError(w, r, "Missing credentials")
			return
		}
		if err != nil {
			writeAuthError(w, r, "Invalid or expired credentials")
			return
		}

		ctx := ContextWithSession(r.Context(), session)
		ctx = logging.ContextWithTenantID(ctx, session.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MonitoringKeyMiddleware authenticates requests with a monitoring API
// key from the Authorization header or X-Monitoring-API-Key.
func (m *KeyManager) MonitoringKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		plaintext := ExtractMonitoringKey(r)
		if plaintext == "" {
			writeAuthError(w, r, "Missing monitoring API key")
			return
		}

		key, err := m.Validate(r.Context(), plaintext, requestIP(r))
		if err != nil {
			writeAuthError(w, r, "Invalid monitoring API key")
			return
		}

		ctx := ContextWithMonitoringKey(r.Context(), key)
		ctx = logging.ContextWithTenantID(ctx, key.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireKeyScope gates a monitoring route on a key scope. Mount inside
// MonitoringKeyMiddleware.
func RequireKeyScope(scope models.KeyScope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := MonitoringKeyFromContext(r.Context())
			if key == nil || RequireScope(key, scope) != nil {
				writeForbidden(w, r, "Key lacks required scope: "+string(scope))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts a Bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// requestIP extracts the client IP from RemoteAddr.
func requestIP(r *http.Request) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	writeEnvelope(w, r, http.StatusUnauthorized, models.ErrCodeAuthentication, message)
}

func writeForbidden(w http.ResponseWriter, r *http.Request, message string) {
	writeEnvelope(w, r, http.StatusForbidden, models.ErrCodeAuthorization, message)
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := models.APIResponse{
		Success: false,
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
		Meta: models.Meta{
			CorrelationID: logging.CorrelationIDFromContext(r.Context()),
			Timestamp:     time.Now().UTC(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode auth error response")
	}
}
