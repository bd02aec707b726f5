// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/custodia/internal/backup"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
)

// requireBackups answers 503 when the backup manager is not configured.
func (h *Handlers) requireBackups(w http.ResponseWriter, r *http.Request) bool {
	if h.backups == nil {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeInternal, "Backups are not configured", nil)
		return false
	}
	return true
}

// ListBackups returns all backup records, newest first.
func (h *Handlers) ListBackups(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}
	respond(w, r, http.StatusOK, h.backups.List())
}

// CreateBackup runs a manual backup synchronously.
func (h *Handlers) CreateBackup(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}

	var req struct {
		Notes string `json:"notes" validate:"max=1000"`
	}
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}

	record, err := h.backups.CreateBackup(r.Context(), backup.TriggerManual, req.Notes)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal, "Backup failed", map[string]interface{}{
			"backup_id": recordID(record),
		})
		return
	}
	respond(w, r, http.StatusCreated, record)
}

func recordID(record *backup.Backup) string {
	if record == nil {
		return ""
	}
	return record.ID
}

// GetBackup returns one backup record.
func (h *Handlers) GetBackup(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}
	record, err := h.backups.Get(chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, record)
}

// DeleteBackup removes a backup archive and its record.
func (h *Handlers) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}
	if err := h.backups.Delete(chi.URLParam(r, "id")); err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]bool{"deleted": true})
}

// ValidateBackup verifies archive integrity without restoring.
func (h *Handlers) ValidateBackup(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}
	result, err := h.backups.Validate(chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, result)
}

// RestoreBackup restores selected stores from an archive. A database
// restore requires a process restart to take effect; the result says
// so.
func (h *Handlers) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}

	var opts backup.RestoreOptions
	if !decode(w, r, &opts) {
		return
	}

	result, err := h.backups.Restore(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		respondError(w, r, http.StatusConflict, models.ErrCodeConflict, err.Error(), nil)
		return
	}
	respond(w, r, http.StatusOK, result)
}

// DownloadBackup streams the backup archive.
func (h *Handlers) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}

	reader, record, err := h.backups.Open(chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(record.FilePath)+`"`)
	if _, err := io.Copy(w, reader); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("backup_id", record.ID).
			Msg("backup download interrupted")
	}
}

// BackupStats summarizes backup history.
func (h *Handlers) BackupStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}
	respond(w, r, http.StatusOK, h.backups.Stats())
}

// GetRetention returns the active retention policy.
func (h *Handlers) GetRetention(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}
	respond(w, r, http.StatusOK, h.backups.Retention())
}

// SetRetention updates the retention policy. MaxAge arrives as a Go
// duration string.
func (h *Handlers) SetRetention(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}

	var req struct {
		MaxCount int    `json:"max_count" validate:"required,min=1"`
		MaxAge   string `json:"max_age" validate:"omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}

	policy := backup.RetentionPolicy{MaxCount: req.MaxCount}
	if req.MaxAge != "" {
		maxAge, err := time.ParseDuration(req.MaxAge)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "Invalid max_age duration", nil)
			return
		}
		policy.MaxAge = maxAge
	}

	if err := h.backups.SetRetention(policy); err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}
	respond(w, r, http.StatusOK, policy)
}
