// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Site journal operations. Entries are append-only: an edit writes a new
// row with revision+1 pointing back at the original via parent_id, and the
// original row is never touched.

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/models"
)

// CreateJournalEntry appends a new journal entry (revision 1).
func (db *DB) CreateJournalEntry(ctx context.Context, tenantID, authorID string, req *models.JournalCreateRequest) (*models.JournalEntry, error) {
	entry := &models.JournalEntry{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Site:      req.Site,
		AuthorID:  authorID,
		Body:      req.Body,
		Tags:      req.Tags,
		Revision:  1,
		CreatedAt: time.Now(),
	}
	if err := db.insertJournalEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ReviseJournalEntry appends a new revision of an existing entry. The
// original is left untouched; the revision chains to the root entry so all
// revisions of one note share a parent.
func (db *DB) ReviseJournalEntry(ctx context.Context, tenantID, entryID, authorID string, req *models.JournalReviseRequest) (*models.JournalEntry, error) {
	original, err := db.GetJournalEntry(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}

	parentID := original.ID
	if original.ParentID != "" {
		parentID = original.ParentID
	}

	latest, err := db.latestRevision(ctx, tenantID, parentID)
	if err != nil {
		return nil, err
	}

	revision := &models.JournalEntry{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Site:      original.Site,
		AuthorID:  authorID,
		Body:      req.Body,
		Tags:      req.Tags,
		Revision:  latest + 1,
		ParentID:  parentID,
		CreatedAt: time.Now(),
	}
	if err := db.insertJournalEntry(ctx, revision); err != nil {
		return nil, err
	}
	return revision, nil
}

func (db *DB) insertJournalEntry(ctx context.Context, entry *models.JournalEntry) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tags, err := marshalStringList(entry.Tags)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO journal_entries (id, tenant_id, site, author_id, body, tags, revision, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.TenantID, entry.Site, entry.AuthorID, entry.Body,
		tags, entry.Revision, nullIfEmpty(entry.ParentID), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// latestRevision returns the highest revision number in an entry's chain.
func (db *DB) latestRevision(ctx context.Context, tenantID, rootID string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var latest int
	err := db.conn.QueryRowContext(ctx, `
		SELECT MAX(revision) FROM journal_entries
		WHERE tenant_id = ? AND (id = ? OR parent_id = ?)
	`, tenantID, rootID, rootID).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("failed to find latest revision: %w", err)
	}
	return latest, nil
}

// GetJournalEntry retrieves a single journal entry.
func (db *DB) GetJournalEntry(ctx context.Context, tenantID, id string) (*models.JournalEntry, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, site, author_id, body, tags, revision, parent_id, created_at
		FROM journal_entries WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	entry, err := scanJournalEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: journal entry %q", ErrNotFound, id)
	}
	return entry, err
}

// ListJournalEntries returns a filtered, paginated page of entries (newest
// first) plus the total count matching the filter.
func (db *DB) ListJournalEntries(ctx context.Context, tenantID string, filter models.JournalFilter) ([]models.JournalEntry, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where := "WHERE tenant_id = ?"
	args := []interface{}{tenantID}

	if filter.Site != "" {
		where += " AND site = ?"
		args = append(args, filter.Site)
	}
	if filter.AuthorID != "" {
		where += " AND author_id = ?"
		args = append(args, filter.AuthorID)
	}
	if filter.Tag != "" {
		// tags is a JSON array of strings; substring match on the quoted tag.
		where += " AND tags LIKE ?"
		args = append(args, `%"`+filter.Tag+`"%`)
	}
	if filter.From != "" {
		where += " AND created_at >= CAST(? AS TIMESTAMP)"
		args = append(args, filter.From)
	}
	if filter.To != "" {
		where += " AND created_at < CAST(? AS TIMESTAMP) + INTERVAL 1 DAY"
		args = append(args, filter.To)
	}

	var total int64
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM journal_entries "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count journal entries: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	query := `
		SELECT id, tenant_id, site, author_id, body, tags, revision, parent_id, created_at
		FROM journal_entries ` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	entries := []models.JournalEntry{}
	for rows.Next() {
		entry, err := scanJournalEntry(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *entry)
	}
	return entries, total, rows.Err()
}

func scanJournalEntry(scan func(dest ...interface{}) error) (*models.JournalEntry, error) {
	var e models.JournalEntry
	var tags, parentID sql.NullString

	err := scan(&e.ID, &e.TenantID, &e.Site, &e.AuthorID, &e.Body,
		&tags, &e.Revision, &parentID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan journal entry: %w", err)
	}

	e.ParentID = parentID.String
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &e.Tags); err != nil {
			return nil, fmt.Errorf("failed to parse journal tags: %w", err)
		}
	}
	return &e, nil
}

// marshalStringList marshals a tag list to a NullString for storage.
func marshalStringList(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal tags: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
