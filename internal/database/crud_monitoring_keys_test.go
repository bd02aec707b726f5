// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/models"
)

func testMonitoringKey(tenantID, name, prefix string) *models.MonitoringAPIKey {
	return &models.MonitoringAPIKey{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        name,
		KeyPrefix:   prefix,
		KeyHash:     "$2a$10$fakehashfortesting",
		Scopes:      []models.KeyScope{models.ScopeMetricsRead, models.ScopeHealthRead},
		IPAllowlist: []string{"10.0.0.5"},
		CreatedAt:   time.Now(),
		CreatedBy:   "admin-1",
	}
}

func TestMonitoringKeyLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	key := testMonitoringKey("acme", "prometheus-scraper", "cust_mon_abc")
	if err := db.CreateMonitoringKey(ctx, key); err != nil {
		t.Fatalf("CreateMonitoringKey failed: %v", err)
	}

	byPrefix, err := db.GetMonitoringKeysByPrefix(ctx, "cust_mon_abc")
	if err != nil {
		t.Fatalf("GetMonitoringKeysByPrefix failed: %v", err)
	}
	if len(byPrefix) != 1 {
		t.Fatalf("expected 1 key by prefix, got %d", len(byPrefix))
	}
	got := byPrefix[0]
	if got.KeyHash != key.KeyHash || len(got.Scopes) != 2 || len(got.IPAllowlist) != 1 {
		t.Errorf("unexpected scanned key: %+v", got)
	}
	if !got.IsActive() {
		t.Error("expected fresh key to be active")
	}

	if err := db.TouchMonitoringKey(ctx, key.ID, "10.0.0.5", time.Now()); err != nil {
		t.Fatalf("TouchMonitoringKey failed: %v", err)
	}
	touched, err := db.GetMonitoringKeyByID(ctx, "acme", key.ID)
	if err != nil {
		t.Fatalf("GetMonitoringKeyByID failed: %v", err)
	}
	if touched.UseCount != 1 || touched.LastUsedAt == nil || touched.LastUsedIP != "10.0.0.5" {
		t.Errorf("expected usage recorded, got %+v", touched)
	}

	if err := db.RevokeMonitoringKey(ctx, "acme", key.ID, "admin-1", "rotated"); err != nil {
		t.Fatalf("RevokeMonitoringKey failed: %v", err)
	}
	// Revoking twice finds nothing to revoke.
	if err := db.RevokeMonitoringKey(ctx, "acme", key.ID, "admin-1", "again"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double revoke, got %v", err)
	}

	revoked, err := db.GetMonitoringKeyByID(ctx, "acme", key.ID)
	if err != nil {
		t.Fatalf("GetMonitoringKeyByID failed: %v", err)
	}
	if !revoked.IsRevoked() || revoked.RevokeReason != "rotated" {
		t.Errorf("expected revoked key, got %+v", revoked)
	}

	if err := db.DeleteMonitoringKey(ctx, "acme", key.ID); err != nil {
		t.Fatalf("DeleteMonitoringKey failed: %v", err)
	}
	if _, err := db.GetMonitoringKeyByID(ctx, "acme", key.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListMonitoringKeysTenantScoped(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.CreateMonitoringKey(ctx, testMonitoringKey("acme", "scraper-a", "cust_mon_aaa")); err != nil {
		t.Fatalf("CreateMonitoringKey failed: %v", err)
	}
	if err := db.CreateMonitoringKey(ctx, testMonitoringKey("globex", "scraper-b", "cust_mon_bbb")); err != nil {
		t.Fatalf("CreateMonitoringKey failed: %v", err)
	}

	keys, err := db.ListMonitoringKeys(ctx, "acme")
	if err != nil {
		t.Fatalf("ListMonitoringKeys failed: %v", err)
	}
	if len(keys) != 1 || keys[0].Name != "scraper-a" {
		t.Errorf("expected only acme keys, got %+v", keys)
	}
}
