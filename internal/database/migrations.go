// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Versioned schema migrations. Applied migrations are tracked in the
// schema_migrations table so each runs exactly once. The initial schema
// lives in schema.go; migrations are for incremental changes once deployed
// databases exist, and must be append-only.

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/custodia/internal/logging"
)

// Migration represents a versioned database migration.
type Migration struct {
	Version     int    // Unique version number (monotonically increasing)
	Name        string // Human-readable migration name
	Description string // Description of what this migration does
	SQL         string // SQL statement to execute
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// getMigrations returns all versioned migrations in order.
//
// The initial schema is complete in schema.go, so this starts empty. New
// migrations go here starting from version 1, for example:
//
//	{Version: 1, Name: "add_person_badge_id", Description: "Badge ID for access control integration",
//	 SQL: `ALTER TABLE people ADD COLUMN IF NOT EXISTS badge_id TEXT;`},
//
// Never modify or remove an existing migration once databases carry data.
func (db *DB) getMigrations() []Migration {
	return []Migration{}
}

// createMigrationsTable creates the schema_migrations table if it doesn't exist
func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, schemaMigrationsTable)
	return err
}

// getAppliedMigrations returns a map of version -> Migration for all applied migrations
func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// runVersionedMigrations executes only new migrations that haven't been applied yet.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	newMigrations := 0
	for _, m := range db.getMigrations() {
		if _, exists := applied[m.Version]; exists {
			continue
		}

		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}

		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description,
		); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}

		logging.Info().
			Int("version", m.Version).
			Str("name", m.Name).
			Msg("Applied database migration")
		newMigrations++
	}

	if newMigrations > 0 {
		logging.Info().Int("count", newMigrations).Msg("Database migrations complete")
	}

	return nil
}
