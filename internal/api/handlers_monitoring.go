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

// MonitoringMetrics summarizes platform counters for external
// monitoring systems that cannot scrape /metrics directly.
func (h *Handlers) MonitoringMetrics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.db.GetRecordCounts(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}

	data := map[string]interface{}{
		"records": counts,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.hub != nil {
		data["websocket_clients"] = h.hub.ClientCount()
	}
	if blocked, err := h.blocker.ListBlocked(r.Context()); err == nil {
		data["blocked_ips"] = len(blocked)
	}
	respond(w, r, http.StatusOK, data)
}

// MonitoringForensicsSummary aggregates forensic events over a window
// (default 24h) for the calling key's tenant.
func (h *Handlers) MonitoringForensicsSummary(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "Invalid window duration", nil)
			return
		}
		window = parsed
	}

	summary, err := h.forensics.Summarize(r.Context(), h.tenantID(r), window)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, summary)
}

// MonitoringForensics lists forensic events for the calling key's
// tenant.
func (h *Handlers) MonitoringForensics(w http.ResponseWriter, r *http.Request) {
	page, limit := h.pagination(r)
	filter, ok := h.forensicFilter(w, r, page, limit)
	if !ok {
		return
	}

	events, total, err := h.forensics.Query(r.Context(), h.tenantID(r), filter)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondList(w, r, events, total, page, limit)
}

// MonitoringQueues reports task pipeline health and the poison log.
func (h *Handlers) MonitoringQueues(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{}
	if h.pipeline != nil {
		data["healthy"] = h.pipeline.Healthy()
	}
	if h.poison != nil {
		data["poison"] = h.poison.Stats()
	}
	respond(w, r, http.StatusOK, data)
}

// forensicFilter parses the shared forensic query params. On a parse
// failure it writes the error response and returns false.
func (h *Handlers) forensicFilter(w http.ResponseWriter, r *http.Request, page, limit int) (models.ForensicFilter, bool) {
	filter := models.ForensicFilter{
		UserID: r.URL.Query().Get("user_id"),
		Event:  models.ForensicEventType(r.URL.Query().Get("event")),
		IP:     r.URL.Query().Get("ip"),
		Page:   page,
		Limit:  limit,
	}

	for _, bound := range []struct {
		name string
		dst  *time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		raw := r.URL.Query().Get(bound.name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", raw)
		}
		if err != nil {
			respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "Invalid "+bound.name+" timestamp", nil)
			return filter, false
		}
		*bound.dst = parsed
	}
	return filter, true
}
