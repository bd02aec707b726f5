// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// CSRF protection errors
var (
	// ErrCSRFTokenMissing indicates no CSRF token was provided.
	ErrCSRFTokenMissing = errors.New("CSRF token missing")

	// ErrCSRFTokenInvalid indicates the CSRF token doesn't match the session's.
	ErrCSRFTokenInvalid = errors.New("CSRF token invalid")
)

const (
	csrfKeyPrefix   = "csrf:"
	csrfHeaderName  = "X-CSRF-Token"
	csrfTokenLength = 32
)

// CSRFStore persists one CSRF token per session in Badger. Issuing a new
// token for a session overwrites the previous one, which is how rotation
// on login and on privilege change works.
type CSRFStore struct {
	db  *badger.DB
	ttl time.Duration
}

// NewCSRFStore creates a CSRF token store with the given token TTL.
func NewCSRFStore(db *badger.DB, ttl time.Duration) *CSRFStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CSRFStore{db: db, ttl: ttl}
}

func csrfKey(sessionID string) []byte {
	return []byte(csrfKeyPrefix + sessionID)
}

// Issue generates and stores a fresh token for the session, replacing any
// existing one.
func (s *CSRFStore) Issue(ctx context.Context, sessionID string) (string, error) {
	bytes := make([]byte, csrfTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(bytes)

	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(csrfKey(sessionID), []byte(token)).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store CSRF token: %w", err)
	}
	return token, nil
}

// Validate compares the presented token against the session's stored
// token in constant time.
func (s *CSRFStore) Validate(ctx context.Context, sessionID, token string) error {
	if token == "" {
		return ErrCSRFTokenMissing
	}

	var stored []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(csrfKey(sessionID))
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			// Expired tokens are dropped by the Badger TTL, so a missing
			// entry covers both "never issued" and "expired".
			return ErrCSRFTokenInvalid
		}
		return fmt.Errorf("failed to load CSRF token: %w", err)
	}

	if subtle.ConstantTimeCompare(stored, []byte(token)) != 1 {
		return ErrCSRFTokenInvalid
	}
	return nil
}

// Delete removes the session's token on logout.
func (s *CSRFStore) Delete(ctx context.Context, sessionID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(csrfKey(sessionID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// CSRFMiddleware validates double-submit tokens on state-changing
// requests from session-authenticated clients.
type CSRFMiddleware struct {
	store       *CSRFStore
	exemptPaths []string
}

// NewCSRFMiddleware creates the CSRF middleware. exemptPaths are path
// prefixes that never require a token (login itself, monitoring API).
func NewCSRFMiddleware(store *CSRFStore, exemptPaths []string) *CSRFMiddleware {
	return &CSRFMiddleware{store: store, exemptPaths: exemptPaths}
}

// Protect enforces CSRF validation. Safe methods pass through. Requests
// without a session in context (token- or key-authenticated clients)
// are not CSRF-vulnerable and pass through as well.
func (m *CSRFMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) || m.isExemptPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		session := SessionFromContext(r.Context())
		if session == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get(csrfHeaderName)
		if err := m.store.Validate(r.Context(), session.ID, token); err != nil {
			metrics.CSRFFailures.Inc()
			logging.Ctx(r.Context()).Warn().
				Err(err).
				Str("path", r.URL.Path).
				Str("session_id", logging.SanitizeSessionID(session.ID)).
				Msg("CSRF validation failed")
			writeCSRFError(w, r, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *CSRFMiddleware) isExemptPath(path string) bool {
	for _, exempt := range m.exemptPaths {
		if strings.HasPrefix(path, exempt) {
			return true
		}
	}
	return false
}

// isSafeMethod reports whether the method is safe per RFC 7231.
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func writeCSRFError(w http.ResponseWriter, r *http.Request, err error) {
	message := "CSRF token invalid"
	if errors.Is(err, ErrCSRFTokenMissing) {
		message = "CSRF token missing"
	}

	resp := models.APIResponse{
		Success: false,
		Error: &models.APIError{
			Code:    models.ErrCodeCSRF,
			Message: message,
		},
		Meta: models.Meta{
			CorrelationID: logging.CorrelationIDFromContext(r.Context()),
			Timestamp:     time.Now().UTC(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode CSRF error response")
	}
}
