// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Attendance operations. A check-in opens a record for (person, day); a
// check-out closes the open record and computes worked minutes. A person
// can have at most one open record at a time.

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

// CheckIn opens an attendance record for the person. Returns ErrConflict if
// the person already has an open record.
func (db *DB) CheckIn(ctx context.Context, tenantID string, req *models.CheckInRequest, now time.Time) (*models.AttendanceRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	// The person must exist in this tenant.
	if _, err := db.GetPerson(ctx, tenantID, req.PersonID); err != nil {
		return nil, err
	}

	open, err := db.GetOpenAttendance(ctx, tenantID, req.PersonID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if open != nil {
		return nil, fmt.Errorf("%w: person already checked in at %s", ErrConflict, open.CheckIn.Format(time.RFC3339))
	}

	source := req.Source
	if source == "" {
		source = "api"
	}

	record := &models.AttendanceRecord{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		PersonID:  req.PersonID,
		Site:      req.Site,
		Day:       now.Format("2006-01-02"),
		CheckIn:   now,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO attendance_records (id, tenant_id, person_id, site, day, check_in, check_out, worked_minutes, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, 0, ?, ?, ?)
	`, record.ID, tenantID, record.PersonID, record.Site, record.Day,
		record.CheckIn, record.Source, record.CreatedAt, record.UpdatedAt)
	metrics.RecordDBQuery("insert", "attendance_records", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to insert attendance record: %w", err)
	}
	return record, nil
}

// CheckOut closes the person's open attendance record and computes worked
// minutes. Returns ErrConflict if no open record exists.
func (db *DB) CheckOut(ctx context.Context, tenantID, personID string, now time.Time) (*models.AttendanceRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	record, err := db.GetOpenAttendance(ctx, tenantID, personID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: no open check-in for person", ErrConflict)
		}
		return nil, err
	}

	worked := int(now.Sub(record.CheckIn).Minutes())
	if worked < 0 {
		worked = 0
	}

	result, err := db.conn.ExecContext(ctx, `
		UPDATE attendance_records SET check_out = ?, worked_minutes = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND check_out IS NULL
	`, now, worked, now, tenantID, record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to close attendance record: %w", err)
	}
	if err := checkRowsAffected(result, "open attendance record"); err != nil {
		return nil, err
	}

	record.CheckOut = &now
	record.WorkedMinutes = worked
	record.UpdatedAt = now
	return record, nil
}

// GetOpenAttendance returns the person's open record, or ErrNotFound.
func (db *DB) GetOpenAttendance(ctx context.Context, tenantID, personID string) (*models.AttendanceRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, person_id, site, day, check_in, check_out, worked_minutes, source, created_at, updated_at
		FROM attendance_records
		WHERE tenant_id = ? AND person_id = ? AND check_out IS NULL
		ORDER BY check_in DESC LIMIT 1
	`, tenantID, personID)

	record, err := scanAttendance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: open attendance record", ErrNotFound)
	}
	return record, err
}

// ListAttendance returns a filtered, paginated page of attendance records
// plus the total count matching the filter.
func (db *DB) ListAttendance(ctx context.Context, tenantID string, filter models.AttendanceFilter) ([]models.AttendanceRecord, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where := "WHERE tenant_id = ?"
	args := []interface{}{tenantID}

	if filter.PersonID != "" {
		where += " AND person_id = ?"
		args = append(args, filter.PersonID)
	}
	if filter.Site != "" {
		where += " AND site = ?"
		args = append(args, filter.Site)
	}
	if filter.Day != "" {
		where += " AND day = ?"
		args = append(args, filter.Day)
	}
	if filter.From != "" {
		where += " AND day >= ?"
		args = append(args, filter.From)
	}
	if filter.To != "" {
		where += " AND day <= ?"
		args = append(args, filter.To)
	}

	var total int64
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance_records "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendance records: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	query := `
		SELECT id, tenant_id, person_id, site, day, check_in, check_out, worked_minutes, source, created_at, updated_at
		FROM attendance_records ` + where + ` ORDER BY check_in DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query attendance records: %w", err)
	}
	defer rows.Close()

	records := []models.AttendanceRecord{}
	for rows.Next() {
		record, err := scanAttendance(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *record)
	}
	return records, total, rows.Err()
}

// AttendanceSummaryRow aggregates worked minutes per person for reports.
type AttendanceSummaryRow struct {
	PersonID      string
	Days          int64
	WorkedMinutes int64
}

// SummarizeAttendance aggregates closed records per person over [from, to]
// (YYYY-MM-DD, inclusive). Used by the attendance summary report worker.
func (db *DB) SummarizeAttendance(ctx context.Context, tenantID, from, to string) ([]AttendanceSummaryRow, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT person_id, COUNT(DISTINCT day) AS days, SUM(worked_minutes) AS worked
		FROM attendance_records
		WHERE tenant_id = ? AND day >= ? AND day <= ? AND check_out IS NOT NULL
		GROUP BY person_id
		ORDER BY person_id
	`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize attendance: %w", err)
	}
	defer rows.Close()

	summary := []AttendanceSummaryRow{}
	for rows.Next() {
		var row AttendanceSummaryRow
		if err := rows.Scan(&row.PersonID, &row.Days, &row.WorkedMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan attendance summary: %w", err)
		}
		summary = append(summary, row)
	}
	return summary, rows.Err()
}

func scanAttendance(scan func(dest ...interface{}) error) (*models.AttendanceRecord, error) {
	var r models.AttendanceRecord
	var checkOut sql.NullTime

	err := scan(&r.ID, &r.TenantID, &r.PersonID, &r.Site, &r.Day,
		&r.CheckIn, &checkOut, &r.WorkedMinutes, &r.Source,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan attendance record: %w", err)
	}

	if checkOut.Valid {
		r.CheckOut = &checkOut.Time
	}
	return &r, nil
}
