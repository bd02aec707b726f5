// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package authz

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/audit"
	"github.com/tomtom215/custodia/internal/auth"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
)

// Middleware enforces tenant-scoped RBAC on routes. Mount inside the
// auth middleware so the session is in context.
type Middleware struct {
	enforcer *Enforcer
	auditor  *audit.Logger
}

// NewMiddleware creates the authorization middleware. auditor may be
// nil in tests.
func NewMiddleware(enforcer *Enforcer, auditor *audit.Logger) *Middleware {
	return &Middleware{enforcer: enforcer, auditor: auditor}
}

// Require gates a route on object+action for the session's tenant.
func (m *Middleware) Require(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := auth.SessionFromContext(r.Context())
			if session == nil {
				writeAuthzError(w, r, "No authentication context")
				return
			}

			allowed, err := m.enforcer.EnforceAny(session.UserID, string(session.Role), session.TenantID, object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization check failed")
				writeAuthzInternal(w, r)
				return
			}
			if !allowed {
				logging.Ctx(r.Context()).Warn().
					Str("user_id", session.UserID).
					Str("role", string(session.Role)).
					Str("object", object).
					Str("action", action).
					Msg("Authorization denied")
				if m.auditor != nil {
					actor := audit.ActorFromUser(session.UserID, session.Username, []string{string(session.Role)}, "session", session.ID)
					m.auditor.LogAuthzDenied(r.Context(), actor, audit.Source{IPAddress: session.IP}, object, action)
				}
				writeAuthzError(w, r, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a route on a minimum workforce role. Admin passes
// every check, manager passes manager and staff checks.
func (m *Middleware) RequireRole(minimum models.PersonRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := auth.SessionFromContext(r.Context())
			if session == nil {
				writeAuthzError(w, r, "No authentication context")
				return
			}
			if !roleAtLeast(session.Role, minimum) {
				writeAuthzError(w, r, "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// roleAtLeast compares workforce roles by rank.
func roleAtLeast(have, want models.PersonRole) bool {
	rank := map[models.PersonRole]int{
		models.RoleStaff:   1,
		models.RoleManager: 2,
		models.RoleAdmin:   3,
	}
	return rank[have] >= rank[want]
}

func writeAuthzError(w http.ResponseWriter, r *http.Request, message string) {
	writeAuthzEnvelope(w, r, http.StatusForbidden, models.ErrCodeAuthorization, message)
}

func writeAuthzInternal(w http.ResponseWriter, r *http.Request) {
	writeAuthzEnvelope(w, r, http.StatusInternalServerError, models.ErrCodeInternal, "Authorization check failed")
}

func writeAuthzEnvelope(w http.ResponseWriter, r *http.Request, status int, code, message string) {
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
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode authorization response")
	}
}
