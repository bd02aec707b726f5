// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/custodia/internal/auth"
	"github.com/tomtom215/custodia/internal/models"
)

// Login authenticates a user and opens a session. Browser clients get
// the session cookie plus a readable CSRF cookie; the response body
// carries the JWT pair and the rotated CSRF token the client must echo
// on state-changing requests.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.auth.Login(r.Context(), h.tenantID(r), &req, clientIP(r), r.UserAgent())
	if err != nil {
		mapError(w, r, err)
		return
	}

	h.setSessionCookies(w, resp.SessionID, resp.CSRFToken)
	respond(w, r, http.StatusOK, resp)
}

// setSessionCookies issues the HttpOnly session cookie and the CSRF
// cookie. The CSRF cookie is deliberately readable: the client copies
// its value into the X-CSRF-Token header, and the server compares the
// header against the stored token.
func (h *Handlers) setSessionCookies(w http.ResponseWriter, sessionID, csrfToken string) {
	secure := h.cfg.Server.Environment == "production"
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(h.cfg.Security.SessionTimeout.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CSRFCookieName,
		Value:    csrfToken,
		Path:     "/",
		MaxAge:   int(h.cfg.Security.CSRFTokenTTL.Seconds()),
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookies expires both browser cookies on logout.
func (h *Handlers) clearSessionCookies(w http.ResponseWriter) {
	secure := h.cfg.Server.Environment == "production"
	for _, name := range []string{auth.SessionCookieName, auth.CSRFCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == auth.SessionCookieName,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// Refresh exchanges a refresh token for a new token pair.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, models.ErrCodeAuthentication, "Invalid or expired refresh token", nil)
		return
	}
	respond(w, r, http.StatusOK, tokens)
}

// Logout ends the current session and expires the browser cookies.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), h.session(r)); err != nil {
		mapError(w, r, err)
		return
	}
	h.clearSessionCookies(w)
	respond(w, r, http.StatusOK, map[string]bool{"logged_out": true})
}

// LogoutAll revokes every session belonging to the current user.
func (h *Handlers) LogoutAll(w http.ResponseWriter, r *http.Request) {
	revoked, err := h.auth.LogoutAll(r.Context(), h.session(r))
	if err != nil {
		mapError(w, r, err)
		return
	}
	h.clearSessionCookies(w)
	respond(w, r, http.StatusOK, map[string]int{"sessions_revoked": revoked})
}

// Me returns the authenticated session.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.session(r))
}

// Sessions lists the current user's active sessions.
func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.auth.Sessions(r.Context(), h.session(r).UserID)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, sessions)
}

// RevokeSession revokes one of the current user's sessions by ID.
func (h *Handlers) RevokeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.RevokeSession(r.Context(), h.session(r), chi.URLParam(r, "id")); err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]bool{"revoked": true})
}
