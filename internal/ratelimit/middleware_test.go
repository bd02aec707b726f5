// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/middleware"
	"github.com/tomtom215/custodia/internal/models"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuardRejectsBlockedIP(t *testing.T) {
	blocker := newTestBlocker(t, BlockerConfig{Threshold: 1, BaseDuration: time.Hour})
	ctx := context.Background()

	if _, err := blocker.RecordViolation(ctx, "10.1.1.1", ScopeDefault); err != nil {
		t.Fatalf("RecordViolation failed: %v", err)
	}

	handler := blocker.Guard(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v2/people", nil)
	req.RemoteAddr = "10.1.1.1:44321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if resp.Success || resp.Error == nil || resp.Error.Code != models.ErrCodeRateLimited {
		t.Errorf("unexpected envelope: %+v", resp)
	}

	// A different IP sails through.
	req = httptest.NewRequest(http.MethodGet, "/api/v2/people", nil)
	req.RemoteAddr = "10.1.1.2:44321"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected clean IP to pass, got %d", rec.Code)
	}
}

func TestGuardNotEvadedBySpoofedForwardedHeader(t *testing.T) {
	blocker := newTestBlocker(t, BlockerConfig{Threshold: 1, BaseDuration: time.Hour})
	ctx := context.Background()

	if _, err := blocker.RecordViolation(ctx, "203.0.113.7", ScopeDefault); err != nil {
		t.Fatalf("RecordViolation failed: %v", err)
	}

	// No trusted proxies: forwarded headers from the client are noise.
	realIP := middleware.TrustedRealIP(nil)
	handler := realIP(blocker.Guard(okHandler()).ServeHTTP)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/people", nil)
	req.RemoteAddr = "203.0.113.7:40100"
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for blocked IP, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v2/people", nil)
	req.RemoteAddr = "203.0.113.7:40101"
	req.Header.Set("X-Forwarded-For", "198.51.100.9")
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("blocked IP evaded its block via X-Forwarded-For, got %d", rec.Code)
	}
}

func TestGuardPassesUnparseableAddress(t *testing.T) {
	blocker := newTestBlocker(t, BlockerConfig{Threshold: 1, BaseDuration: time.Hour})

	handler := blocker.Guard(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "not-an-address"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected unparseable address to pass, got %d", rec.Code)
	}
}

func TestLimitRejectsAndEscalates(t *testing.T) {
	blocker := newTestBlocker(t, BlockerConfig{
		Threshold:    1, // first violation blocks
		BaseDuration: time.Hour,
	})

	handler := blocker.Limit(ClassLimit{
		Scope:    ScopeWrite,
		Requests: 2,
		Window:   time.Minute,
	})(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v2/helpdesk/tickets", nil)
		req.RemoteAddr = "10.2.2.2:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v2/helpdesk/tickets", nil)
	req.RemoteAddr = "10.2.2.2:1000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 over the window, got %d", rec.Code)
	}

	// The rejection was a violation; with threshold 1 the IP is now blocked.
	block, err := blocker.Check(context.Background(), "10.2.2.2")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if block == nil || block.Scope != ScopeWrite {
		t.Errorf("expected violation to escalate into a block, got %+v", block)
	}
}

func TestLimitDisabledPassesThrough(t *testing.T) {
	blocker := newTestBlocker(t, BlockerConfig{
		Threshold:    1,
		BaseDuration: time.Hour,
		Disabled:     true,
	})

	handler := blocker.Limit(ClassLimit{
		Scope:    ScopeWrite,
		Requests: 1,
		Window:   time.Minute,
	})(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v2/helpdesk/tickets", nil)
		req.RemoteAddr = "10.3.3.3:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected passthrough with limiting disabled, got %d", i+1, rec.Code)
		}
	}

	if block, err := blocker.Check(context.Background(), "10.3.3.3"); err != nil || block != nil {
		t.Errorf("expected no block with limiting disabled, got %+v, %v", block, err)
	}
}

func TestClassLimitsFromConfig(t *testing.T) {
	t.Parallel()

	limits := ClassLimitsFromConfig(250, 2*time.Minute)
	if limits[ScopeDefault].Requests != 250 || limits[ScopeDefault].Window != 2*time.Minute {
		t.Errorf("default class not overridden: %+v", limits[ScopeDefault])
	}
	// Stricter classes are not configurable.
	if limits[ScopeLogin].Requests != 5 || limits[ScopeLogin].Window != 5*time.Minute {
		t.Errorf("login class changed: %+v", limits[ScopeLogin])
	}

	// Zero values keep the built-in default.
	limits = ClassLimitsFromConfig(0, 0)
	if limits[ScopeDefault] != DefaultClassLimits()[ScopeDefault] {
		t.Errorf("zero config changed the default class: %+v", limits[ScopeDefault])
	}
}

func TestDefaultClassLimits(t *testing.T) {
	t.Parallel()

	limits := DefaultClassLimits()
	if limits[ScopeLogin].Requests != 5 || limits[ScopeLogin].Window != 5*time.Minute {
		t.Errorf("unexpected login class: %+v", limits[ScopeLogin])
	}
	if limits[ScopeDefault].Requests != 100 || limits[ScopeDefault].Window != time.Minute {
		t.Errorf("unexpected default class: %+v", limits[ScopeDefault])
	}
	for scope, limit := range limits {
		if limit.Scope != scope {
			t.Errorf("scope mismatch: key %q vs %q", scope, limit.Scope)
		}
	}
}
