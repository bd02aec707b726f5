// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Monitoring API key operations.
//
// Security:
//   - Key hashes are stored, never plaintext keys
//   - All operations are parameterized (SQL injection safe)
//   - Prefix lookup narrows validation to a handful of bcrypt comparisons

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/custodia/internal/models"
)

// CreateMonitoringKey inserts a new monitoring API key.
func (db *DB) CreateMonitoringKey(ctx context.Context, key *models.MonitoringAPIKey) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	scopesJSON, err := json.Marshal(key.Scopes)
	if err != nil {
		return fmt.Errorf("failed to marshal scopes: %w", err)
	}
	allowlist, err := marshalStringList(key.IPAllowlist)
	if err != nil {
		return fmt.Errorf("failed to marshal ip_allowlist: %w", err)
	}

	query := `
		INSERT INTO monitoring_api_keys (
			id, tenant_id, name, description,
			key_prefix, key_hash, scopes,
			expires_at, last_used_at, last_used_ip, use_count,
			ip_allowlist, created_at, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.conn.ExecContext(ctx, query,
		key.ID, key.TenantID, key.Name, nullIfEmpty(key.Description),
		key.KeyPrefix, key.KeyHash, string(scopesJSON),
		nullableTime(key.ExpiresAt), nullableTime(key.LastUsedAt),
		nullIfEmpty(key.LastUsedIP), key.UseCount,
		allowlist, key.CreatedAt, key.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert monitoring key: %w", err)
	}
	return nil
}

const monitoringKeySelect = `
	SELECT id, tenant_id, name, description,
		key_prefix, key_hash, scopes,
		expires_at, last_used_at, last_used_ip, use_count,
		ip_allowlist, created_at, created_by,
		revoked_at, revoked_by, revoke_reason
	FROM monitoring_api_keys`

// GetMonitoringKeyByID retrieves a key by ID within a tenant.
func (db *DB) GetMonitoringKeyByID(ctx context.Context, tenantID, id string) (*models.MonitoringAPIKey, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		monitoringKeySelect+` WHERE tenant_id = ? AND id = ?`, tenantID, id)
	key, err := scanMonitoringKey(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: monitoring key %q", ErrNotFound, id)
	}
	return key, err
}

// GetMonitoringKeysByPrefix retrieves keys matching a prefix. The validator
// bcrypt-compares the presented secret against each candidate; prefixes are
// random enough that this is almost always a single row.
func (db *DB) GetMonitoringKeysByPrefix(ctx context.Context, prefix string) ([]models.MonitoringAPIKey, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		monitoringKeySelect+` WHERE key_prefix = ?`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitoring keys by prefix: %w", err)
	}
	defer rows.Close()

	keys := []models.MonitoringAPIKey{}
	for rows.Next() {
		key, err := scanMonitoringKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

// ListMonitoringKeys returns a tenant's keys newest first.
func (db *DB) ListMonitoringKeys(ctx context.Context, tenantID string) ([]models.MonitoringAPIKey, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		monitoringKeySelect+` WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitoring keys: %w", err)
	}
	defer rows.Close()

	keys := []models.MonitoringAPIKey{}
	for rows.Next() {
		key, err := scanMonitoringKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

// TouchMonitoringKey records a successful use of the key.
func (db *DB) TouchMonitoringKey(ctx context.Context, id, ip string, usedAt time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		UPDATE monitoring_api_keys SET last_used_at = ?, last_used_ip = ?, use_count = use_count + 1
		WHERE id = ?
	`, usedAt, ip, id)
	if err != nil {
		return fmt.Errorf("failed to touch monitoring key: %w", err)
	}
	return nil
}

// RevokeMonitoringKey revokes a key. Already-revoked keys return ErrNotFound.
func (db *DB) RevokeMonitoringKey(ctx context.Context, tenantID, id, revokedBy, reason string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx, `
		UPDATE monitoring_api_keys SET revoked_at = ?, revoked_by = ?, revoke_reason = ?
		WHERE tenant_id = ? AND id = ? AND revoked_at IS NULL
	`, time.Now(), revokedBy, reason, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to revoke monitoring key: %w", err)
	}
	return checkRowsAffected(result, "monitoring key (or already revoked)")
}

// DeleteMonitoringKey permanently deletes a key.
func (db *DB) DeleteMonitoringKey(ctx context.Context, tenantID, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM monitoring_api_keys WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete monitoring key: %w", err)
	}
	return checkRowsAffected(result, "monitoring key")
}

func scanMonitoringKey(scan func(dest ...interface{}) error) (*models.MonitoringAPIKey, error) {
	var k models.MonitoringAPIKey
	var description, lastUsedIP sql.NullString
	var scopesJSON, allowlistJSON sql.NullString
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	var revokedBy, revokeReason sql.NullString

	err := scan(&k.ID, &k.TenantID, &k.Name, &description,
		&k.KeyPrefix, &k.KeyHash, &scopesJSON,
		&expiresAt, &lastUsedAt, &lastUsedIP, &k.UseCount,
		&allowlistJSON, &k.CreatedAt, &k.CreatedBy,
		&revokedAt, &revokedBy, &revokeReason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan monitoring key: %w", err)
	}

	k.Description = description.String
	k.LastUsedIP = lastUsedIP.String
	k.RevokedBy = revokedBy.String
	k.RevokeReason = revokeReason.String
	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		k.LastUsedAt = &lastUsedAt.Time
	}
	if revokedAt.Valid {
		k.RevokedAt = &revokedAt.Time
	}

	if scopesJSON.Valid && scopesJSON.String != "" {
		if err := json.Unmarshal([]byte(scopesJSON.String), &k.Scopes); err != nil {
			return nil, fmt.Errorf("failed to parse scopes: %w", err)
		}
	}
	if allowlistJSON.Valid && allowlistJSON.String != "" {
		if err := json.Unmarshal([]byte(allowlistJSON.String), &k.IPAllowlist); err != nil {
			return nil, fmt.Errorf("failed to parse ip_allowlist: %w", err)
		}
	}
	return &k, nil
}
