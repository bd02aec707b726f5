// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/encryption"
	"github.com/tomtom215/custodia/internal/models"
)

// testDBSemaphore limits concurrent database creation to prevent resource
// exhaustion in CI. Concurrent DuckDB CGO calls can hang under resource
// pressure, so tests hold the semaphore for their entire lifecycle.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates an in-memory test database without field encryption.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	return setupTestDBWithCrypto(t, nil)
}

// setupEncryptedTestDB creates an in-memory test database with a fresh
// single-key encryption service.
func setupEncryptedTestDB(t *testing.T) (*DB, *encryption.Service) {
	t.Helper()

	material, err := encryption.GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	svc, err := encryption.NewService(encryption.Config{
		Keys:             []string{"k1:" + material},
		ActiveKey:        "k1",
		PBKDF2Iterations: 100000,
	})
	if err != nil {
		t.Fatalf("failed to create encryption service: %v", err)
	}
	return setupTestDBWithCrypto(t, svc), svc
}

func setupTestDBWithCrypto(t *testing.T, crypto *encryption.Service) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	db, err := New(cfg, crypto)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}

func TestDatabaseInitialization(t *testing.T) {
	db := setupTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	counts, err := db.GetRecordCounts(ctx)
	if err != nil {
		t.Fatalf("GetRecordCounts failed: %v", err)
	}
	if counts.Tenants != 0 || counts.People != 0 || counts.Tickets != 0 {
		t.Errorf("expected empty database, got %+v", counts)
	}
}

func TestCheckpoint(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Checkpoint(context.Background()); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
}

func TestTenantUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tenant := &models.Tenant{ID: "acme", Name: "Acme Facilities", Active: true}
	if err := db.UpsertTenant(ctx, tenant); err != nil {
		t.Fatalf("UpsertTenant failed: %v", err)
	}

	// Second upsert updates in place.
	tenant.Name = "Acme Facilities GmbH"
	if err := db.UpsertTenant(ctx, tenant); err != nil {
		t.Fatalf("second UpsertTenant failed: %v", err)
	}

	got, err := db.GetTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("GetTenant failed: %v", err)
	}
	if got.Name != "Acme Facilities GmbH" {
		t.Errorf("expected updated name, got %q", got.Name)
	}

	tenants, err := db.ListTenants(ctx)
	if err != nil {
		t.Fatalf("ListTenants failed: %v", err)
	}
	if len(tenants) != 1 {
		t.Errorf("expected 1 tenant, got %d", len(tenants))
	}
}

func TestGetTenantNotFound(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetTenant(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing tenant")
	}
}

func TestUserLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := &models.User{
		TenantID:     "acme",
		Username:     "jdoe",
		PasswordHash: "$2a$10$fakehashfortesting",
		Role:         models.RoleManager,
		Active:       true,
	}
	if err := db.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := db.GetUserByUsername(ctx, "acme", "jdoe")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if got.ID != user.ID || got.Role != models.RoleManager {
		t.Errorf("unexpected user: %+v", got)
	}

	// Same username in another tenant is fine.
	other := &models.User{
		TenantID:     "globex",
		Username:     "jdoe",
		PasswordHash: "$2a$10$fakehashfortesting",
		Role:         models.RoleStaff,
		Active:       true,
	}
	if err := db.CreateUser(ctx, other); err != nil {
		t.Fatalf("cross-tenant CreateUser failed: %v", err)
	}

	// Duplicate within the tenant conflicts.
	dup := &models.User{
		TenantID:     "acme",
		Username:     "jdoe",
		PasswordHash: "$2a$10$fakehashfortesting",
		Role:         models.RoleStaff,
		Active:       true,
	}
	if err := db.CreateUser(ctx, dup); err == nil {
		t.Fatal("expected conflict for duplicate username")
	}

	if err := db.SetUserActive(ctx, "acme", user.ID, false); err != nil {
		t.Fatalf("SetUserActive failed: %v", err)
	}
	got, err = db.GetUserByID(ctx, "acme", user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Active {
		t.Error("expected user to be deactivated")
	}

	count, err := db.CountUsers(ctx, "acme")
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 user in acme, got %d", count)
	}
}
