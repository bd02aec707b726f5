// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package models

import "time"

// ReportType selects what a queued report materializes.
type ReportType string

const (
	ReportAttendanceSummary ReportType = "attendance_summary"
	ReportTicketSummary     ReportType = "ticket_summary"
	ReportForensicsExport   ReportType = "forensics_export"
)

// IsValidReportType checks if a report type is known.
func IsValidReportType(t ReportType) bool {
	switch t {
	case ReportAttendanceSummary, ReportTicketSummary, ReportForensicsExport:
		return true
	}
	return false
}

// ReportStatus is the lifecycle state of a queued report.
type ReportStatus string

const (
	ReportPending ReportStatus = "PENDING"
	ReportRunning ReportStatus = "RUNNING"
	ReportDone    ReportStatus = "DONE"
	ReportFailed  ReportStatus = "FAILED"
)

// Report represents an asynchronous report job. Requests enqueue on the
// reports queue; a worker materializes the CSV and flips the status.
type Report struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id"`
	Type        ReportType   `json:"type"`
	Status      ReportStatus `json:"status"`
	RequestedBy string       `json:"requested_by"`
	ParamsJSON  string       `json:"params,omitempty"` // opaque filter params
	FilePath    string       `json:"-"`                // server-side CSV path, never serialized
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
}

// ReportRequest is the payload for POST /reports.
type ReportRequest struct {
	Type ReportType        `json:"type" validate:"required,oneof=attendance_summary ticket_summary forensics_export"`
	From string            `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string            `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Args map[string]string `json:"args" validate:"omitempty,max=20"`
}

// ReportTask is the message enqueued on the reports queue.
type ReportTask struct {
	ReportID      string `json:"report_id"`
	TenantID      string `json:"tenant_id"`
	CorrelationID string `json:"correlation_id"`
}
