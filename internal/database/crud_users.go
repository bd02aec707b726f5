// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/models"
)

// CreateUser inserts a new user. Usernames are unique per tenant.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, tenant_id, username, password_hash, role, person_id, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		user.ID, user.TenantID, user.Username, user.PasswordHash,
		string(user.Role), nullIfEmpty(user.PersonID), user.Active,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %q already exists", ErrConflict, user.Username)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByUsername retrieves a user within a tenant by username.
func (db *DB) GetUserByUsername(ctx context.Context, tenantID, username string) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, username, password_hash, role, person_id, active, created_at, updated_at
		FROM users WHERE tenant_id = ? AND username = ?
	`, tenantID, username)
	return scanUser(row)
}

// GetUserByID retrieves a user within a tenant by ID.
func (db *DB) GetUserByID(ctx context.Context, tenantID, id string) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, username, password_hash, role, person_id, active, created_at, updated_at
		FROM users WHERE tenant_id = ? AND id = ?
	`, tenantID, id)
	return scanUser(row)
}

// UpdateUserPassword replaces a user's password hash.
func (db *DB) UpdateUserPassword(ctx context.Context, tenantID, id, passwordHash string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE tenant_id = ? AND id = ?
	`, passwordHash, time.Now(), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return checkRowsAffected(result, "user")
}

// SetUserActive enables or disables a user account.
func (db *DB) SetUserActive(ctx context.Context, tenantID, id string, active bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx, `
		UPDATE users SET active = ?, updated_at = ? WHERE tenant_id = ? AND id = ?
	`, active, time.Now(), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return checkRowsAffected(result, "user")
}

// CountUsers returns the number of users in a tenant. Used by the bootstrap
// path to decide whether to seed the initial admin account.
func (db *DB) CountUsers(ctx context.Context, tenantID string) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE tenant_id = ?`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var role string
	var personID sql.NullString

	err := row.Scan(&u.ID, &u.TenantID, &u.Username, &u.PasswordHash,
		&role, &personID, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.Role = models.PersonRole(role)
	u.PersonID = personID.String
	return &u, nil
}

// nullIfEmpty maps empty strings to SQL NULL for optional columns.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation reports whether an error is a DuckDB unique/primary key
// constraint violation. DuckDB's Go driver surfaces constraint errors as
// plain strings, so this matches on message text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "constraint")
}
