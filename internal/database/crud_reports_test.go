// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/custodia/internal/models"
)

func TestReportLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	report := &models.Report{
		TenantID:    "acme",
		Type:        models.ReportAttendanceSummary,
		RequestedBy: "user-1",
		ParamsJSON:  `{"from":"2026-08-01","to":"2026-08-31"}`,
	}
	if err := db.CreateReport(ctx, report); err != nil {
		t.Fatalf("CreateReport failed: %v", err)
	}
	if report.Status != models.ReportPending {
		t.Fatalf("expected PENDING, got %s", report.Status)
	}

	if err := db.MarkReportRunning(ctx, "acme", report.ID); err != nil {
		t.Fatalf("MarkReportRunning failed: %v", err)
	}

	// A redelivered task finds the row already RUNNING.
	if err := db.MarkReportRunning(ctx, "acme", report.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second MarkReportRunning, got %v", err)
	}

	if err := db.FinishReport(ctx, "acme", report.ID, "/data/reports/acme/r1.csv", nil); err != nil {
		t.Fatalf("FinishReport failed: %v", err)
	}

	got, err := db.GetReport(ctx, "acme", report.ID)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if got.Status != models.ReportDone || got.FilePath != "/data/reports/acme/r1.csv" {
		t.Errorf("unexpected finished report: %+v", got)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("expected started_at and finished_at stamped")
	}
}

func TestReportFailure(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	report := &models.Report{
		TenantID:    "acme",
		Type:        models.ReportTicketSummary,
		RequestedBy: "user-1",
	}
	if err := db.CreateReport(ctx, report); err != nil {
		t.Fatalf("CreateReport failed: %v", err)
	}
	if err := db.MarkReportRunning(ctx, "acme", report.ID); err != nil {
		t.Fatalf("MarkReportRunning failed: %v", err)
	}
	if err := db.FinishReport(ctx, "acme", report.ID, "", fmt.Errorf("no rows in window")); err != nil {
		t.Fatalf("FinishReport failed: %v", err)
	}

	got, err := db.GetReport(ctx, "acme", report.ID)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if got.Status != models.ReportFailed || got.Error != "no rows in window" {
		t.Errorf("unexpected failed report: %+v", got)
	}
	if got.FilePath != "" {
		t.Error("expected no file path on failure")
	}
}

func TestDeleteFinishedReports(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	report := &models.Report{
		TenantID:    "acme",
		Type:        models.ReportForensicsExport,
		RequestedBy: "user-1",
	}
	if err := db.CreateReport(ctx, report); err != nil {
		t.Fatalf("CreateReport failed: %v", err)
	}
	if err := db.MarkReportRunning(ctx, "acme", report.ID); err != nil {
		t.Fatalf("MarkReportRunning failed: %v", err)
	}
	if err := db.FinishReport(ctx, "acme", report.ID, "/data/reports/acme/old.csv", nil); err != nil {
		t.Fatalf("FinishReport failed: %v", err)
	}

	paths, err := db.DeleteFinishedReports(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteFinishedReports failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "/data/reports/acme/old.csv" {
		t.Errorf("expected deleted file path returned, got %v", paths)
	}

	if _, err := db.GetReport(ctx, "acme", report.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected report deleted, got %v", err)
	}
}
