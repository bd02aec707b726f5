// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/auth"
	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
	"github.com/tomtom215/custodia/internal/validation"
)

// maxBodyBytes caps request bodies; no endpoint accepts uploads.
const maxBodyBytes = 1 << 20

// respond writes a successful envelope with the given payload.
func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, r, status, models.APIResponse{
		Success: true,
		Data:    data,
	})
}

// respondList writes one page of results with pagination metadata.
func respondList(w http.ResponseWriter, r *http.Request, results interface{}, total int64, page, pageSize int) {
	respond(w, r, http.StatusOK, models.ListResult{
		Results: results,
		ListMeta: models.ListMeta{
			Total:    int(total),
			Page:     page,
			PageSize: pageSize,
		},
	})
}

// respondError writes an error envelope. message must be safe to show
// to end users.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	writeEnvelope(w, r, status, models.APIResponse{
		Success: false,
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondInternal logs the cause and answers with an opaque 500. The
// correlation ID in the envelope is the client's handle into the logs.
func respondInternal(w http.ResponseWriter, r *http.Request, err error) {
	logging.Ctx(r.Context()).Error().Err(err).
		Str("path", r.URL.Path).
		Msg("request failed")
	respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal, "Internal server error", nil)
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp models.APIResponse) {
	resp.Meta = models.Meta{
		CorrelationID: logging.CorrelationIDFromContext(r.Context()),
		Timestamp:     time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
	}
}

// mapError translates domain errors into envelope responses. Unknown
// errors become opaque 500s.
func mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrKeyNotFound):
		respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound, "Resource not found", nil)
	case errors.Is(err, database.ErrConflict):
		respondError(w, r, http.StatusConflict, models.ErrCodeConflict, err.Error(), nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, r, http.StatusUnauthorized, models.ErrCodeAuthentication, "Invalid username or password", nil)
	case errors.Is(err, auth.ErrAccountLocked):
		respondError(w, r, http.StatusLocked, models.ErrCodeLocked, "Account temporarily locked due to failed login attempts", nil)
	default:
		respondInternal(w, r, err)
	}
}

// decode reads and validates a JSON body into dst. On failure it writes
// the error response and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "Invalid JSON body: "+err.Error(), nil)
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
