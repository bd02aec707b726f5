// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/custodia/internal/auth"
	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
)

// bootstrapTenant makes sure the default tenant exists and, when admin
// credentials are configured, seeds the initial admin user. The seed
// only runs when the username is absent; it never resets an existing
// password.
func bootstrapTenant(ctx context.Context, cfg *config.Config, db *database.DB) error {
	tenantID := cfg.Tenancy.DefaultTenant
	if err := db.UpsertTenant(ctx, &models.Tenant{
		ID:     tenantID,
		Name:   tenantID,
		Active: true,
	}); err != nil {
		return fmt.Errorf("upsert default tenant: %w", err)
	}

	if cfg.Security.AdminUsername == "" || cfg.Security.AdminPassword == "" {
		logging.Info().Msg("No admin credentials configured, skipping admin seed")
		return nil
	}

	_, err := db.GetUserByUsername(ctx, tenantID, cfg.Security.AdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("look up admin user: %w", err)
	}

	hash, err := auth.HashPassword(cfg.Security.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := db.CreateUser(ctx, &models.User{
		TenantID:     tenantID,
		Username:     cfg.Security.AdminUsername,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Active:       true,
	}); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	logging.Info().
		Str("tenant_id", tenantID).
		Str("username", cfg.Security.AdminUsername).
		Msg("Seeded initial admin user")
	return nil
}
