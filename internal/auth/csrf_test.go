// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCSRFIssueAndValidate(t *testing.T) {
	store := NewCSRFStore(openTestKV(t), time.Hour)
	ctx := context.Background()

	token, err := store.Issue(ctx, "session-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	if err := store.Validate(ctx, "session-1", token); err != nil {
		t.Errorf("expected valid token, got %v", err)
	}
	if err := store.Validate(ctx, "session-1", "wrong-token"); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Errorf("expected ErrCSRFTokenInvalid, got %v", err)
	}
	if err := store.Validate(ctx, "session-1", ""); !errors.Is(err, ErrCSRFTokenMissing) {
		t.Errorf("expected ErrCSRFTokenMissing, got %v", err)
	}
	// Tokens are per session.
	if err := store.Validate(ctx, "session-2", token); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Errorf("expected token bound to session, got %v", err)
	}
}

func TestCSRFRotationInvalidatesOldToken(t *testing.T) {
	store := NewCSRFStore(openTestKV(t), time.Hour)
	ctx := context.Background()

	old, err := store.Issue(ctx, "session-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	fresh, err := store.Issue(ctx, "session-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if old == fresh {
		t.Fatal("rotation must produce a new token")
	}

	if err := store.Validate(ctx, "session-1", old); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Errorf("expected rotated-out token rejected, got %v", err)
	}
	if err := store.Validate(ctx, "session-1", fresh); err != nil {
		t.Errorf("expected fresh token accepted, got %v", err)
	}
}

func TestCSRFDelete(t *testing.T) {
	store := NewCSRFStore(openTestKV(t), time.Hour)
	ctx := context.Background()

	token, err := store.Issue(ctx, "session-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := store.Delete(ctx, "session-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Validate(ctx, "session-1", token); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Errorf("expected token gone after delete, got %v", err)
	}
}

func TestCSRFMiddleware(t *testing.T) {
	store := NewCSRFStore(openTestKV(t), time.Hour)
	middleware := NewCSRFMiddleware(store, []string{"/api/v2/auth/login"})
	ctx := context.Background()

	session := &Session{ID: "session-1", TenantID: "acme", UserID: "user-1"}
	token, err := store.Issue(ctx, session.ID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	handler := middleware.Protect(okHandler())

	serve := func(method, path, csrfToken string, withSession bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if csrfToken != "" {
			req.Header.Set(csrfHeaderName, csrfToken)
		}
		if withSession {
			req = req.WithContext(ContextWithSession(req.Context(), session))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	// Safe methods never need a token.
	if rec := serve(http.MethodGet, "/api/v2/people", "", true); rec.Code != http.StatusOK {
		t.Errorf("expected GET to pass, got %d", rec.Code)
	}

	// State change with valid token.
	if rec := serve(http.MethodPost, "/api/v2/people", token, true); rec.Code != http.StatusOK {
		t.Errorf("expected valid token to pass, got %d", rec.Code)
	}

	// State change with missing or wrong token.
	if rec := serve(http.MethodPost, "/api/v2/people", "", true); rec.Code != http.StatusForbidden {
		t.Errorf("expected missing token rejected, got %d", rec.Code)
	}
	if rec := serve(http.MethodPost, "/api/v2/people", "bogus", true); rec.Code != http.StatusForbidden {
		t.Errorf("expected wrong token rejected, got %d", rec.Code)
	}

	// Exempt paths and sessionless (token-authenticated) requests pass.
	if rec := serve(http.MethodPost, "/api/v2/auth/login", "", true); rec.Code != http.StatusOK {
		t.Errorf("expected exempt path to pass, got %d", rec.Code)
	}
	if rec := serve(http.MethodPost, "/api/v2/people", "", false); rec.Code != http.StatusOK {
		t.Errorf("expected sessionless request to pass, got %d", rec.Code)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
