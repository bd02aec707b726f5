// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/custodia/internal/auth"
	"github.com/tomtom215/custodia/internal/authz"
	"github.com/tomtom215/custodia/internal/middleware"
	"github.com/tomtom215/custodia/internal/models"
	"github.com/tomtom215/custodia/internal/ratelimit"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so the shared stack works with
// r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router assembles the /api/v2 route tree.
type Router struct {
	handlers *Handlers
	deps     Deps
	authz    *authz.Middleware
}

// NewRouter wires handlers and middleware. enforcer gates resource
// access per role.
func NewRouter(deps Deps, enforcer *authz.Middleware) *Router {
	return &Router{
		handlers: NewHandlers(deps),
		deps:     deps,
		authz:    enforcer,
	}
}

// Setup builds the full route tree:
//
//	/api/v2/auth         login, refresh, session management
//	/api/v2/people       workforce CRUD
//	/api/v2/attendance   check-in/check-out and listings
//	/api/v2/helpdesk     tickets, transitions, comments
//	/api/v2/journal      append-only shift journal
//	/api/v2/reports      async CSV report jobs
//	/api/v2/monitoring   API-key guarded read endpoints
//	/api/v2/admin        admin-only platform operations
//	/api/v2/health       liveness and readiness
//	/metrics             Prometheus scrape endpoint
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()
	h := rt.handlers
	sec := rt.deps.Config.Security
	limits := ratelimit.ClassLimitsFromConfig(sec.RateLimitReqs, sec.RateLimitWindow)
	csrf := rt.deps.CSRF

	// Global stack: every request gets an ID, a tenant, security
	// headers, and the blocked-IP guard before anything else runs.
	// Forwarding headers are only honored from trusted proxies, so
	// clients cannot spoof another address past the blocked-IP guard.
	r.Use(chiMiddleware(middleware.TrustedRealIP(sec.TrustedProxies)))
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.Tenant(rt.deps.Config.Tenancy.Header, rt.deps.Config.Tenancy.DefaultTenant)))
	if origins := sec.CORSOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-CSRF-Token", rt.deps.Config.Tenancy.Header, auth.MonitoringKeyHeader},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(SecurityHeaders)
	r.Use(rt.deps.Blocker.Guard)
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

	r.Route("/api/v2/health", func(r chi.Router) {
		r.Use(rt.deps.Blocker.Limit(limits[ratelimit.ScopeHealth]))
		r.Use(chiMiddleware(middleware.Compression))
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v2/auth", func(r chi.Router) {
		r.Use(rt.deps.Blocker.Limit(limits[ratelimit.ScopeAuth]))

		// Login carries the strictest class: 5 attempts per 5 minutes.
		r.With(rt.deps.Blocker.Limit(limits[ratelimit.ScopeLogin])).Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(rt.deps.Auth.Middleware)
			r.Use(csrf.Protect)
			r.Get("/me", h.Me)
			r.Post("/logout", h.Logout)
			r.Post("/logout-all", h.LogoutAll)
			r.Get("/sessions", h.Sessions)
			r.Delete("/sessions/{id}", h.RevokeSession)
		})
	})

	// Authenticated resource routes. Writes sit in the write rate
	// class and behind CSRF; RBAC objects map to the resource name.
	r.Route("/api/v2", func(r chi.Router) {
		r.Use(rt.deps.Auth.Middleware)
		r.Use(csrf.Protect)

		read := rt.deps.Blocker.Limit(limits[ratelimit.ScopeDefault])
		write := rt.deps.Blocker.Limit(limits[ratelimit.ScopeWrite])

		r.Route("/people", func(r chi.Router) {
			r.With(read, rt.authz.Require("people", authz.ActionRead)).Get("/", h.ListPeople)
			r.With(read, rt.authz.Require("people", authz.ActionRead)).Get("/{id}", h.GetPerson)
			r.With(write, rt.authz.Require("people", authz.ActionWrite)).Post("/", h.CreatePerson)
			r.With(write, rt.authz.Require("people", authz.ActionWrite)).Patch("/{id}", h.UpdatePerson)
			r.With(write, rt.authz.Require("people", authz.ActionManage)).Delete("/{id}", h.DeletePerson)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.With(read, rt.authz.Require("attendance", authz.ActionRead)).Get("/", h.ListAttendance)
			r.With(write, rt.authz.Require("attendance", authz.ActionWrite)).Post("/check-in", h.CheckIn)
			r.With(write, rt.authz.Require("attendance", authz.ActionWrite)).Post("/check-out", h.CheckOut)
		})

		r.Route("/helpdesk/tickets", func(r chi.Router) {
			r.With(read, rt.authz.Require("tickets", authz.ActionRead)).Get("/", h.ListTickets)
			r.With(read, rt.authz.Require("tickets", authz.ActionRead)).Get("/{id}", h.GetTicket)
			r.With(write, rt.authz.Require("tickets", authz.ActionWrite)).Post("/", h.CreateTicket)
			r.With(write, rt.authz.Require("tickets", authz.ActionWrite)).Post("/{id}/transition", h.TransitionTicket)
			r.With(write, rt.authz.Require("tickets", authz.ActionWrite)).Post("/{id}/comments", h.CommentTicket)
		})

		r.Route("/journal", func(r chi.Router) {
			r.With(read, rt.authz.Require("journal", authz.ActionRead)).Get("/", h.ListJournalEntries)
			r.With(read, rt.authz.Require("journal", authz.ActionRead)).Get("/{id}", h.GetJournalEntry)
			r.With(write, rt.authz.Require("journal", authz.ActionWrite)).Post("/", h.CreateJournalEntry)
			r.With(write, rt.authz.Require("journal", authz.ActionWrite)).Post("/{id}/revise", h.ReviseJournalEntry)
		})

		r.Route("/reports", func(r chi.Router) {
			reports := rt.deps.Blocker.Limit(limits[ratelimit.ScopeReports])
			r.With(read, rt.authz.Require("reports", authz.ActionRead)).Get("/", h.ListReports)
			r.With(read, rt.authz.Require("reports", authz.ActionRead)).Get("/{id}", h.GetReport)
			r.With(read, rt.authz.Require("reports", authz.ActionRead)).Get("/{id}/download", h.DownloadReport)
			r.With(reports, rt.authz.Require("reports", authz.ActionWrite)).Post("/", h.CreateReport)
		})

		r.With(read).Get("/ws", h.WebSocket)
	})

	// Monitoring endpoints authenticate with cust_mon_* API keys, not
	// sessions. Each route demands its scope.
	r.Route("/api/v2/monitoring", func(r chi.Router) {
		r.Use(rt.deps.Blocker.Limit(limits[ratelimit.ScopeDefault]))
		r.Use(chiMiddleware(middleware.Compression))
		r.Use(rt.deps.Keys.MonitoringKeyMiddleware)

		r.With(auth.RequireKeyScope(models.ScopeHealthRead)).Get("/health", h.Health)
		r.With(auth.RequireKeyScope(models.ScopeMetricsRead)).Get("/metrics", h.MonitoringMetrics)
		r.With(auth.RequireKeyScope(models.ScopeForensicsRead)).Get("/forensics", h.MonitoringForensics)
		r.With(auth.RequireKeyScope(models.ScopeForensicsRead)).Get("/forensics/summary", h.MonitoringForensicsSummary)
		r.With(auth.RequireKeyScope(models.ScopeQueuesRead)).Get("/queues", h.MonitoringQueues)
	})

	r.Route("/api/v2/admin", func(r chi.Router) {
		r.Use(rt.deps.Blocker.Limit(limits[ratelimit.ScopeDefault]))
		r.Use(rt.deps.Auth.Middleware)
		r.Use(csrf.Protect)
		r.Use(rt.authz.RequireRole(models.RoleAdmin))

		r.Get("/blocked-ips", h.ListBlockedIPs)
		r.Delete("/blocked-ips/{ip}", h.UnblockIP)

		r.Get("/forensics", h.AdminForensics)
		r.Get("/audit", h.AuditQuery)

		r.Route("/monitoring-keys", func(r chi.Router) {
			r.Get("/", h.ListMonitoringKeys)
			r.Post("/", h.CreateMonitoringKey)
			r.Get("/{id}", h.GetMonitoringKey)
			r.Post("/{id}/revoke", h.RevokeMonitoringKey)
			r.Delete("/{id}", h.DeleteMonitoringKey)
		})

		r.Post("/encryption/rotate", h.RotateEncryptionKeys)

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", h.ListBackups)
			r.Post("/", h.CreateBackup)
			r.Get("/stats", h.BackupStats)
			r.Get("/retention", h.GetRetention)
			r.Put("/retention", h.SetRetention)
			r.Get("/{id}", h.GetBackup)
			r.Delete("/{id}", h.DeleteBackup)
			r.Post("/{id}/validate", h.ValidateBackup)
			r.Post("/{id}/restore", h.RestoreBackup)
			r.Get("/{id}/download", h.DownloadBackup)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound, "Endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, models.ErrCodeValidation, "Method not allowed", nil)
	})

	return r
}
