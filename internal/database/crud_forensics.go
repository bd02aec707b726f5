// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Session forensics storage. The forensics recorder writes events here
// asynchronously; the admin and monitoring APIs query and summarize them,
// and the maintenance queue prunes rows past retention.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// InsertForensicEvent appends one event to the forensic trail.
func (db *DB) InsertForensicEvent(ctx context.Context, event *models.ForensicEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Hot path: the recorder writes every auth event through here, so the
	// insert goes through the prepared statement cache.
	stmt, err := db.getStmt(ctx, `
		INSERT INTO forensic_events (id, tenant_id, session_id, user_id, username, event, ip, user_agent, detail, correlation_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx, event.ID, event.TenantID,
		nullIfEmpty(event.SessionID), nullIfEmpty(event.UserID), nullIfEmpty(event.Username),
		string(event.Event), event.IP,
		nullIfEmpty(event.UserAgent), nullIfEmpty(event.Detail), nullIfEmpty(event.CorrelationID),
		event.Timestamp)
	metrics.RecordDBQuery("insert", "forensic_events", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert forensic event: %w", err)
	}
	return nil
}

// QueryForensicEvents returns a filtered, paginated page of events (newest
// first) plus the total count matching the filter.
func (db *DB) QueryForensicEvents(ctx context.Context, tenantID string, filter models.ForensicFilter) ([]models.ForensicEvent, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where := "WHERE tenant_id = ?"
	args := []interface{}{tenantID}

	if filter.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Event != "" {
		where += " AND event = ?"
		args = append(args, string(filter.Event))
	}
	if filter.IP != "" {
		where += " AND ip = ?"
		args = append(args, filter.IP)
	}
	if !filter.From.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		where += " AND timestamp < ?"
		args = append(args, filter.To)
	}

	var total int64
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM forensic_events "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count forensic events: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	query := `
		SELECT id, tenant_id, session_id, user_id, username, event, ip, user_agent, detail, correlation_id, timestamp
		FROM forensic_events ` + where + ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query forensic events: %w", err)
	}
	defer rows.Close()

	events := []models.ForensicEvent{}
	for rows.Next() {
		event, err := scanForensicEvent(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *event)
	}
	return events, total, rows.Err()
}

// SummarizeForensicEvents aggregates the trail over the trailing window.
func (db *DB) SummarizeForensicEvents(ctx context.Context, tenantID string, window time.Duration) (*models.ForensicSummary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	since := time.Now().Add(-window)
	summary := &models.ForensicSummary{
		Window:  window.String(),
		ByEvent: make(map[models.ForensicEventType]int),
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT event, COUNT(*) FROM forensic_events
		WHERE tenant_id = ? AND timestamp >= ?
		GROUP BY event
	`, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize forensic events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var event string
		var count int
		if err := rows.Scan(&event, &count); err != nil {
			return nil, fmt.Errorf("failed to scan forensic summary: %w", err)
		}
		summary.ByEvent[models.ForensicEventType(event)] = count
		summary.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = db.conn.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT ip), COUNT(DISTINCT user_id) FROM forensic_events
		WHERE tenant_id = ? AND timestamp >= ?
	`, tenantID, since).Scan(&summary.DistinctIPs, &summary.DistinctUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to count distinct forensic actors: %w", err)
	}

	return summary, nil
}

// DeleteForensicEvents prunes events older than the cutoff across all
// tenants. Returns the number of rows deleted.
func (db *DB) DeleteForensicEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM forensic_events WHERE timestamp < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete forensic events: %w", err)
	}
	return result.RowsAffected()
}

func scanForensicEvent(scan func(dest ...interface{}) error) (*models.ForensicEvent, error) {
	var e models.ForensicEvent
	var event string
	var sessionID, userID, username, userAgent, detail, correlationID sql.NullString

	err := scan(&e.ID, &e.TenantID, &sessionID, &userID, &username,
		&event, &e.IP, &userAgent, &detail, &correlationID, &e.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan forensic event: %w", err)
	}

	e.Event = models.ForensicEventType(event)
	e.SessionID = sessionID.String
	e.UserID = userID.String
	e.Username = username.String
	e.UserAgent = userAgent.String
	e.Detail = detail.String
	e.CorrelationID = correlationID.String
	return &e, nil
}
