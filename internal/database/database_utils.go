// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"fmt"
	"time"
)

// ensureContext creates a context with a 30-second timeout if none provided.
// Every database operation gets a deadline so a stuck query cannot hang a
// request forever.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}

	return ctx, func() {}
}

// Checkpoint forces a WAL checkpoint. The backup manager calls this before
// copying the database file so the copy is self-contained.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, "CHECKPOINT")
	if err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// GetDatabasePath returns the path to the database file for backup operations.
func (db *DB) GetDatabasePath() string {
	return db.cfg.Path
}

// RecordCounts holds row counts of the main tables for backup verification.
type RecordCounts struct {
	Tenants    int64 `json:"tenants"`
	People     int64 `json:"people"`
	Attendance int64 `json:"attendance"`
	Tickets    int64 `json:"tickets"`
	Journal    int64 `json:"journal"`
	Forensics  int64 `json:"forensics"`
}

// GetRecordCounts returns row counts of the main tables.
func (db *DB) GetRecordCounts(ctx context.Context) (*RecordCounts, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	counts := &RecordCounts{}
	for _, c := range []struct {
		table string
		dest  *int64
	}{
		{"tenants", &counts.Tenants},
		{"people", &counts.People},
		{"attendance_records", &counts.Attendance},
		{"tickets", &counts.Tickets},
		{"journal_entries", &counts.Journal},
		{"forensic_events", &counts.Forensics},
	} {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table) //nolint:gosec // table names are compile-time constants
		if err := db.conn.QueryRowContext(ctx, query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	return counts, nil
}
