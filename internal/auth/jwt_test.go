// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/custodia/internal/models"
)

func newTestTokenManager(t *testing.T) *TokenManager {
	t.Helper()

	manager, err := NewTokenManager("test-secret-at-least-32-characters", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	return manager
}

func TestTokenManagerRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenManager("", time.Minute, time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestTokenPairRoundTrip(t *testing.T) {
	manager := newTestTokenManager(t)
	user := &models.User{
		ID:       "user-1",
		TenantID: "acme",
		Username: "jdoe",
		Role:     models.RoleManager,
	}

	pair, err := manager.GeneratePair(user, "session-1")
	if err != nil {
		t.Fatalf("GeneratePair failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	claims, err := manager.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.TenantID != "acme" || claims.SessionID != "session-1" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.Role != models.RoleManager {
		t.Errorf("expected manager role, got %s", claims.Role)
	}

	refreshClaims, err := manager.ParseRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh failed: %v", err)
	}
	if refreshClaims.SessionID != "session-1" {
		t.Errorf("refresh token lost session binding: %+v", refreshClaims)
	}
}

func TestTokenTypeEnforced(t *testing.T) {
	manager := newTestTokenManager(t)
	user := &models.User{ID: "user-1", TenantID: "acme", Username: "jdoe"}

	pair, err := manager.GeneratePair(user, "session-1")
	if err != nil {
		t.Fatalf("GeneratePair failed: %v", err)
	}

	if _, err := manager.ParseAccess(pair.RefreshToken); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("expected ErrWrongTokenType for refresh-as-access, got %v", err)
	}
	if _, err := manager.ParseRefresh(pair.AccessToken); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("expected ErrWrongTokenType for access-as-refresh, got %v", err)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	manager := newTestTokenManager(t)
	other, err := NewTokenManager("a-completely-different-signing-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}

	pair, err := manager.GeneratePair(&models.User{ID: "user-1"}, "session-1")
	if err != nil {
		t.Fatalf("GeneratePair failed: %v", err)
	}

	if _, err := other.ParseAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	manager := newTestTokenManager(t)

	for _, token := range []string{"", "not.a.jwt", "eyJhbGciOiJub25lIn0.e30."} {
		if _, err := manager.ParseAccess(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}
