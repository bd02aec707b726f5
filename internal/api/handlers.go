// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/custodia/internal/audit"
	"github.com/tomtom215/custodia/internal/auth"
	"github.com/tomtom215/custodia/internal/backup"
	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/forensics"
	"github.com/tomtom215/custodia/internal/middleware"
	"github.com/tomtom215/custodia/internal/ratelimit"
	"github.com/tomtom215/custodia/internal/tasks"
	"github.com/tomtom215/custodia/internal/websocket"
)

// TaskQueues is the surface the handlers need from the task pipeline.
// Nil-able so the API can run without a broker in tests.
type TaskQueues interface {
	Healthy() bool
}

// Deps collects everything the handlers touch. Backups, Hub, Publisher,
// Poison, and Pipeline are optional; endpoints depending on a missing
// one answer 503.
type Deps struct {
	Config    *config.Config
	DB        *database.DB
	Auth      *auth.Service
	Keys      *auth.KeyManager
	CSRF      *auth.CSRFMiddleware
	Blocker   *ratelimit.Blocker
	Auditor   *audit.Logger
	Forensics *forensics.Recorder

	Backups   *backup.Manager
	Hub       *websocket.Hub
	Publisher *tasks.Publisher
	Poison    *tasks.PoisonLog
	Pipeline  TaskQueues
}

// Handlers implements every /api/v2 endpoint.
type Handlers struct {
	cfg       *config.Config
	db        *database.DB
	auth      *auth.Service
	keys      *auth.KeyManager
	blocker   *ratelimit.Blocker
	auditor   *audit.Logger
	forensics *forensics.Recorder

	backups   *backup.Manager
	hub       *websocket.Hub
	publisher *tasks.Publisher
	poison    *tasks.PoisonLog
	pipeline  TaskQueues

	upgrader  gorillaws.Upgrader
	startTime time.Time
}

// NewHandlers wires the handler set.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		cfg:       deps.Config,
		db:        deps.DB,
		auth:      deps.Auth,
		keys:      deps.Keys,
		blocker:   deps.Blocker,
		auditor:   deps.Auditor,
		forensics: deps.Forensics,
		backups:   deps.Backups,
		hub:       deps.Hub,
		publisher: deps.Publisher,
		poison:    deps.Poison,
		pipeline:  deps.Pipeline,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		startTime: time.Now(),
	}
}

// session returns the authenticated session. Routes behind the auth
// middleware always have one.
func (h *Handlers) session(r *http.Request) *auth.Session {
	return auth.SessionFromContext(r.Context())
}

// tenantID resolves the request tenant: the session's tenant when
// authenticated, otherwise the tenant header resolution result.
func (h *Handlers) tenantID(r *http.Request) string {
	if session := auth.SessionFromContext(r.Context()); session != nil {
		return session.TenantID
	}
	if key := auth.MonitoringKeyFromContext(r.Context()); key != nil {
		return key.TenantID
	}
	return middleware.GetTenantID(r.Context())
}

// pagination parses page and page_size query params against the
// configured bounds.
func (h *Handlers) pagination(r *http.Request) (page, limit int) {
	page = queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}

	limit = queryInt(r, "page_size", h.cfg.API.DefaultPageSize)
	if limit < 1 {
		limit = h.cfg.API.DefaultPageSize
	}
	if limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.MaxPageSize
	}
	return page, limit
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// clientIP extracts the peer address, already rewritten by the
// trusted-proxy resolver when the request came through a proxy.
func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host
}
