// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

/*
schema.go - Database Schema Management

This file manages the DuckDB schema: table creation and index management.

Tables:
  - tenants: client organizations; every domain row references one
  - users: login credentials (bcrypt hashes), optionally linked to a person
  - people: workforce registry; phone and bank_account hold versioned
    ciphertexts when field encryption is enabled
  - attendance_records: one row per person per day, opened by check-in
  - tickets / ticket_comments / ticket_sequences: helpdesk with per-tenant
    sequential ticket numbers
  - journal_entries: immutable site journal with revision chains
  - reports: asynchronous report jobs and their result files
  - monitoring_api_keys: scoped keys for external monitoring systems
  - forensic_events: session lifecycle and anomaly trail

Schema Strategy:
All columns are defined in the initial CREATE TABLE statements as the single
source of truth. Post-release schema changes go through the versioned
migrations in migrations.go.

Index Strategy:
Indexes cover the tenant-scoped access paths: day/person lookups for
attendance, status/assignee filters for tickets, prefix lookup for
monitoring keys, and time-window scans for forensic events.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getTableCreationQueries returns the table creation SQL statements
func getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			username TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			person_id TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (tenant_id, username)
		)`,

		// phone and bank_account store "v<keyID>:" ciphertexts when field
		// encryption is enabled, plaintext otherwise.
		`CREATE TABLE IF NOT EXISTS people (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT,
			bank_account TEXT,
			role TEXT NOT NULL,
			site TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (tenant_id, code)
		)`,

		// day is tenant-local YYYY-MM-DD; an open record has check_out NULL.
		`CREATE TABLE IF NOT EXISTS attendance_records (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			person_id TEXT NOT NULL,
			site TEXT NOT NULL,
			day TEXT NOT NULL,
			check_in TIMESTAMP NOT NULL,
			check_out TIMESTAMP,
			worked_minutes INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT 'api',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			number BIGINT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			priority TEXT NOT NULL,
			status TEXT NOT NULL,
			assignee_id TEXT,
			reporter_id TEXT NOT NULL,
			site TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			resolved_at TIMESTAMP,
			closed_at TIMESTAMP,
			UNIQUE (tenant_id, number)
		)`,

		`CREATE TABLE IF NOT EXISTS ticket_comments (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			ticket_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Per-tenant ticket number allocator, bumped inside the create
		// transaction so numbers are sequential and gap-free per tenant.
		`CREATE TABLE IF NOT EXISTS ticket_sequences (
			tenant_id TEXT PRIMARY KEY,
			next_number BIGINT NOT NULL
		)`,

		// tags is a JSON array; entries are immutable, revisions chain via
		// parent_id back to the original entry.
		`CREATE TABLE IF NOT EXISTS journal_entries (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			site TEXT NOT NULL,
			author_id TEXT NOT NULL,
			body TEXT NOT NULL,
			tags TEXT,
			revision INTEGER NOT NULL DEFAULT 1,
			parent_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			requested_by TEXT NOT NULL,
			params_json TEXT,
			file_path TEXT,
			error TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		)`,

		// key_hash is a bcrypt hash; the plaintext key is never stored.
		`CREATE TABLE IF NOT EXISTS monitoring_api_keys (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			key_prefix TEXT NOT NULL,
			key_hash TEXT NOT NULL,
			scopes TEXT NOT NULL,
			expires_at TIMESTAMP,
			last_used_at TIMESTAMP,
			last_used_ip TEXT,
			use_count INTEGER NOT NULL DEFAULT 0,
			ip_allowlist TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by TEXT NOT NULL,
			revoked_at TIMESTAMP,
			revoked_by TEXT,
			revoke_reason TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS forensic_events (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			session_id TEXT,
			user_id TEXT,
			username TEXT,
			event TEXT NOT NULL,
			ip TEXT NOT NULL,
			user_agent TEXT,
			detail TEXT,
			correlation_id TEXT,
			timestamp TIMESTAMP NOT NULL
		)`,
	}
}

// createIndexes creates indexes for the tenant-scoped access paths
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_users_tenant_username ON users (tenant_id, username)`,
		`CREATE INDEX IF NOT EXISTS idx_people_tenant_site ON people (tenant_id, site)`,
		`CREATE INDEX IF NOT EXISTS idx_people_tenant_code ON people (tenant_id, code)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_tenant_day ON attendance_records (tenant_id, day)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_tenant_person ON attendance_records (tenant_id, person_id, day)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_tenant_status ON tickets (tenant_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_tenant_assignee ON tickets (tenant_id, assignee_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_comments_ticket ON ticket_comments (tenant_id, ticket_id)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_tenant_site ON journal_entries (tenant_id, site, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_tenant_status ON reports (tenant_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_monitoring_keys_prefix ON monitoring_api_keys (key_prefix)`,
		`CREATE INDEX IF NOT EXISTS idx_forensic_tenant_time ON forensic_events (tenant_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_forensic_tenant_user ON forensic_events (tenant_id, user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_forensic_tenant_ip ON forensic_events (tenant_id, ip)`,
	}

	for _, index := range indexes {
		if _, err := db.conn.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", index, err)
		}
	}

	return nil
}
