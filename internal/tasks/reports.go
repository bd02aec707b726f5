// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// ReportStore is the database surface the report worker needs.
type ReportStore interface {
	GetReport(ctx context.Context, tenantID, id string) (*models.Report, error)
	MarkReportRunning(ctx context.Context, tenantID, id string) error
	FinishReport(ctx context.Context, tenantID, id string, filePath string, reportErr error) error

	SummarizeAttendance(ctx context.Context, tenantID, from, to string) ([]database.AttendanceSummaryRow, error)
	SummarizeTickets(ctx context.Context, tenantID string, from, to time.Time) ([]database.TicketSummaryRow, error)
	QueryForensicEvents(ctx context.Context, tenantID string, filter models.ForensicFilter) ([]models.ForensicEvent, int64, error)
}

// TaskReportGenerate is the task type carried on the reports queue.
const TaskReportGenerate = "report.generate"

// ReportWorker materializes queued reports as CSV files.
type ReportWorker struct {
	store ReportStore
	dir   string
}

// NewReportWorker creates a worker writing CSVs under dir, one
// subdirectory per tenant.
func NewReportWorker(store ReportStore, dir string) *ReportWorker {
	return &ReportWorker{store: store, dir: dir}
}

// reportParams mirrors the filter fields stored in Report.ParamsJSON.
type reportParams struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Process runs one report job to its terminal state. The report status
// always ends DONE or FAILED; worker errors are recorded on the report
// row rather than returned, so a broken report never poisons the queue.
func (w *ReportWorker) Process(ctx context.Context, tenantID, reportID string) error {
	report, err := w.store.GetReport(ctx, tenantID, reportID)
	if err != nil {
		return fmt.Errorf("load report %s: %w", reportID, err)
	}

	if err := w.store.MarkReportRunning(ctx, tenantID, reportID); err != nil {
		// Already running or finished elsewhere; the queue redelivered.
		logging.Ctx(ctx).Debug().
			Str("report_id", reportID).
			Err(err).
			Msg("Report not pending, skipping")
		return nil
	}

	start := time.Now()
	filePath, genErr := w.generate(ctx, report)
	metrics.RecordReport(string(report.Type), time.Since(start), genErr)

	if err := w.store.FinishReport(ctx, tenantID, reportID, filePath, genErr); err != nil {
		return fmt.Errorf("finish report %s: %w", reportID, err)
	}

	if genErr != nil {
		logging.Ctx(ctx).Warn().
			Str("report_id", reportID).
			Str("type", string(report.Type)).
			Err(genErr).
			Msg("Report generation failed")
	}
	return nil
}

func (w *ReportWorker) generate(ctx context.Context, report *models.Report) (string, error) {
	var params reportParams
	if report.ParamsJSON != "" {
		if err := json.Unmarshal([]byte(report.ParamsJSON), &params); err != nil {
			return "", fmt.Errorf("decode report params: %w", err)
		}
	}
	if params.From == "" {
		params.From = time.Now().AddDate(0, -1, 0).Format("2006-01-02")
	}
	if params.To == "" {
		params.To = time.Now().Format("2006-01-02")
	}

	rows, err := w.rowsFor(ctx, report, params)
	if err != nil {
		return "", err
	}

	return w.writeCSV(report, rows)
}

// rowsFor builds the CSV rows, header first.
func (w *ReportWorker) rowsFor(ctx context.Context, report *models.Report, params reportParams) ([][]string, error) {
	switch report.Type {
	case models.ReportAttendanceSummary:
		summary, err := w.store.SummarizeAttendance(ctx, report.TenantID, params.From, params.To)
		if err != nil {
			return nil, fmt.Errorf("summarize attendance: %w", err)
		}
		rows := [][]string{{"person_id", "days_present", "worked_minutes"}}
		for _, row := range summary {
			rows = append(rows, []string{
				row.PersonID,
				strconv.FormatInt(row.Days, 10),
				strconv.FormatInt(row.WorkedMinutes, 10),
			})
		}
		return rows, nil

	case models.ReportTicketSummary:
		from, to, err := parseWindow(params)
		if err != nil {
			return nil, err
		}
		summary, err := w.store.SummarizeTickets(ctx, report.TenantID, from, to)
		if err != nil {
			return nil, fmt.Errorf("summarize tickets: %w", err)
		}
		rows := [][]string{{"status", "priority", "count"}}
		for _, row := range summary {
			rows = append(rows, []string{row.Status, row.Priority, strconv.FormatInt(row.Count, 10)})
		}
		return rows, nil

	case models.ReportForensicsExport:
		from, to, err := parseWindow(params)
		if err != nil {
			return nil, err
		}
		events, _, err := w.store.QueryForensicEvents(ctx, report.TenantID, models.ForensicFilter{
			From:  from,
			To:    to,
			Limit: 100000,
		})
		if err != nil {
			return nil, fmt.Errorf("query forensic events: %w", err)
		}
		rows := [][]string{{"timestamp", "event", "user_id", "username", "session_id", "ip", "detail"}}
		for _, e := range events {
			rows = append(rows, []string{
				e.Timestamp.UTC().Format(time.RFC3339),
				string(e.Event),
				e.UserID,
				e.Username,
				e.SessionID,
				e.IP,
				e.Detail,
			})
		}
		return rows, nil

	default:
		return nil, fmt.Errorf("unknown report type %q", report.Type)
	}
}

func (w *ReportWorker) writeCSV(report *models.Report, rows [][]string) (string, error) {
	dir := filepath.Join(w.dir, report.TenantID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := filepath.Join(dir, report.ID+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.WriteAll(rows); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write report csv: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close report file: %w", err)
	}

	return path, nil
}

// parseWindow converts YYYY-MM-DD bounds into an inclusive time window.
func parseWindow(params reportParams) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", params.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q: %w", params.From, err)
	}
	to, err := time.Parse("2006-01-02", params.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q: %w", params.To, err)
	}
	// End of day so the bound stays inclusive.
	return from, to.Add(24*time.Hour - time.Nanosecond), nil
}

// NewReportHandler returns the handler for the reports queue.
func NewReportHandler(worker *ReportWorker) TaskHandler {
	return func(ctx context.Context, task *Task) error {
		var job models.ReportTask
		if err := task.DecodePayload(&job); err != nil {
			return err
		}
		if job.ReportID == "" || job.TenantID == "" {
			return fmt.Errorf("task %s: report task missing identifiers", task.ID)
		}
		return worker.Process(ctx, job.TenantID, job.ReportID)
	}
}
