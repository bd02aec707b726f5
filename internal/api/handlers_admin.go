// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/custodia/internal/audit"
	"github.com/tomtom215/custodia/internal/models"
)

// ListBlockedIPs returns every IP block record, active blocks first.
func (h *Handlers) ListBlockedIPs(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.blocker.ListBlocked(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}
	sort.Slice(blocked, func(i, j int) bool {
		return blocked[i].BlockedUntil.After(blocked[j].BlockedUntil)
	})
	respond(w, r, http.StatusOK, blocked)
}

// UnblockIP lifts an IP block immediately.
func (h *Handlers) UnblockIP(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if err := h.blocker.Unblock(r.Context(), ip); err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"unblocked": ip})
}

// AdminForensics lists forensic events for the admin's tenant.
func (h *Handlers) AdminForensics(w http.ResponseWriter, r *http.Request) {
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

// CreateMonitoringKey mints a monitoring API key. The plaintext value
// appears in this response only.
func (h *Handlers) CreateMonitoringKey(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMonitoringKeyRequest
	if !decode(w, r, &req) {
		return
	}

	session := h.session(r)
	key, plaintext, err := h.keys.Create(r.Context(), session.TenantID, session.UserID, &req)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, models.CreateMonitoringKeyResponse{
		Key:          key,
		PlaintextKey: plaintext,
	})
}

// ListMonitoringKeys lists the tenant's monitoring keys. Hashes are
// never serialized; only prefixes identify keys.
func (h *Handlers) ListMonitoringKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context(), h.tenantID(r))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, keys)
}

// GetMonitoringKey returns one monitoring key record.
func (h *Handlers) GetMonitoringKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.Get(r.Context(), h.tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, key)
}

// RevokeMonitoringKey disables a key while keeping its audit trail.
func (h *Handlers) RevokeMonitoringKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason" validate:"required,max=500"`
	}
	if !decode(w, r, &req) {
		return
	}

	session := h.session(r)
	if err := h.keys.Revoke(r.Context(), session.TenantID, chi.URLParam(r, "id"), session.UserID, req.Reason); err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]bool{"revoked": true})
}

// DeleteMonitoringKey removes a key record entirely.
func (h *Handlers) DeleteMonitoringKey(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.Delete(r.Context(), h.tenantID(r), chi.URLParam(r, "id")); err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]bool{"deleted": true})
}

// RotateEncryptionKeys re-encrypts stale encrypted columns under the
// active key. Synchronous; the batch size bounds each transaction, not
// the call.
func (h *Handlers) RotateEncryptionKeys(w http.ResponseWriter, r *http.Request) {
	batchSize := queryInt(r, "batch_size", 100)

	result, err := h.db.RotateEncryptedFields(r.Context(), batchSize)
	if h.auditor != nil {
		var active string
		var rotated int64
		if result != nil {
			active = result.ActiveKey
			rotated = result.Rotated
		}
		h.auditor.LogKeyRotation(r.Context(), active, rotated, err)
	}
	if err != nil {
		respondError(w, r, http.StatusConflict, models.ErrCodeConflict, err.Error(), nil)
		return
	}
	respond(w, r, http.StatusOK, result)
}

// AuditQuery lists audit events for the admin's tenant.
func (h *Handlers) AuditQuery(w http.ResponseWriter, r *http.Request) {
	page, limit := h.pagination(r)
	filter := audit.QueryFilter{
		TenantID:      h.tenantID(r),
		ActorID:       r.URL.Query().Get("actor_id"),
		SourceIP:      r.URL.Query().Get("source_ip"),
		CorrelationID: r.URL.Query().Get("correlation_id"),
		SearchText:    r.URL.Query().Get("search"),
		Limit:         limit,
		Offset:        (page - 1) * limit,
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		filter.Types = []audit.EventType{audit.EventType(raw)}
	}
	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{
		{"from", &filter.StartTime},
		{"to", &filter.EndTime},
	} {
		raw := r.URL.Query().Get(bound.name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "Invalid "+bound.name+" timestamp", nil)
			return
		}
		*bound.dst = &parsed
	}

	events, err := h.auditor.Query(r.Context(), filter)
	if err != nil {
		mapError(w, r, err)
		return
	}
	total, err := h.auditor.Count(r.Context(), filter)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondList(w, r, events, total, page, limit)
}
