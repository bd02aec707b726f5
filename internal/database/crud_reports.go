// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Report job operations. A report row is created PENDING when the request
// is enqueued; the report worker flips it RUNNING, materializes the CSV,
// and finishes with DONE (file_path set) or FAILED (error set).

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/models"
)

// CreateReport inserts a new PENDING report job.
func (db *DB) CreateReport(ctx context.Context, report *models.Report) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.Status == "" {
		report.Status = models.ReportPending
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO reports (id, tenant_id, type, status, requested_by, params_json, file_path, error, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?, NULL, NULL)
	`, report.ID, report.TenantID, string(report.Type), string(report.Status),
		report.RequestedBy, nullIfEmpty(report.ParamsJSON), report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by ID within a tenant.
func (db *DB) GetReport(ctx context.Context, tenantID, id string) (*models.Report, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, type, status, requested_by, params_json, file_path, error, created_at, started_at, finished_at
		FROM reports WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	report, err := scanReport(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: report %q", ErrNotFound, id)
	}
	return report, err
}

// MarkReportRunning flips a PENDING report to RUNNING. Returns ErrConflict
// if the report is not PENDING, which makes redelivered report tasks
// idempotent: the second delivery finds the row RUNNING and stops.
func (db *DB) MarkReportRunning(ctx context.Context, tenantID, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx, `
		UPDATE reports SET status = ?, started_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?
	`, string(models.ReportRunning), time.Now(), tenantID, id, string(models.ReportPending))
	if err != nil {
		return fmt.Errorf("failed to mark report running: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: report is not pending", ErrConflict)
	}
	return nil
}

// FinishReport records a report's terminal state: DONE with the result file
// path, or FAILED with the error message.
func (db *DB) FinishReport(ctx context.Context, tenantID, id string, filePath string, reportErr error) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	status := models.ReportDone
	errMsg := ""
	if reportErr != nil {
		status = models.ReportFailed
		errMsg = reportErr.Error()
		filePath = ""
	}

	result, err := db.conn.ExecContext(ctx, `
		UPDATE reports SET status = ?, file_path = ?, error = ?, finished_at = ?
		WHERE tenant_id = ? AND id = ?
	`, string(status), nullIfEmpty(filePath), nullIfEmpty(errMsg), time.Now(), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to finish report: %w", err)
	}
	return checkRowsAffected(result, "report")
}

// ListReports returns a tenant's reports newest first.
func (db *DB) ListReports(ctx context.Context, tenantID string, page, limit int) ([]models.Report, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var total int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reports WHERE tenant_id = ?`, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	limitN, offset := pageBounds(page, limit)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, tenant_id, type, status, requested_by, params_json, file_path, error, created_at, started_at, finished_at
		FROM reports WHERE tenant_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, tenantID, limitN, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		report, err := scanReport(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, *report)
	}
	return reports, total, rows.Err()
}

// DeleteFinishedReports removes DONE/FAILED report rows older than the
// cutoff, returning the file paths of deleted reports so the maintenance
// task can remove the CSVs from disk.
func (db *DB) DeleteFinishedReports(ctx context.Context, olderThan time.Time) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT file_path FROM reports
		WHERE status IN (?, ?) AND finished_at < ? AND file_path IS NOT NULL
	`, string(models.ReportDone), string(models.ReportFailed), olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale reports: %w", err)
	}

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			closeQuietly(rows)
			return nil, fmt.Errorf("failed to scan report path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		closeQuietly(rows)
		return nil, err
	}
	closeQuietly(rows)

	if _, err := db.conn.ExecContext(ctx, `
		DELETE FROM reports WHERE status IN (?, ?) AND finished_at < ?
	`, string(models.ReportDone), string(models.ReportFailed), olderThan); err != nil {
		return nil, fmt.Errorf("failed to delete stale reports: %w", err)
	}
	return paths, nil
}

func scanReport(scan func(dest ...interface{}) error) (*models.Report, error) {
	var r models.Report
	var reportType, status string
	var paramsJSON, filePath, errMsg sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := scan(&r.ID, &r.TenantID, &reportType, &status, &r.RequestedBy,
		&paramsJSON, &filePath, &errMsg, &r.CreatedAt, &startedAt, &finishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	r.Type = models.ReportType(reportType)
	r.Status = models.ReportStatus(status)
	r.ParamsJSON = paramsJSON.String
	r.FilePath = filePath.String
	r.Error = errMsg.String
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	return &r, nil
}
