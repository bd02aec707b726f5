// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/custodia/internal/models"
)

// Health reports component status: database reachability, task
// pipeline health, and process uptime.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	components := map[string]string{}

	if err := h.db.Ping(r.Context()); err != nil {
		status = "degraded"
		components["database"] = "unreachable"
	} else {
		components["database"] = "ok"
	}

	if h.pipeline != nil {
		if h.pipeline.Healthy() {
			components["tasks"] = "ok"
		} else {
			status = "degraded"
			components["tasks"] = "unhealthy"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	respond(w, r, code, map[string]interface{}{
		"status":     status,
		"components": components,
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
	})
}

// HealthLive answers as long as the process can serve requests.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady answers once the database accepts queries.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeInternal, "Database not ready", nil)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
