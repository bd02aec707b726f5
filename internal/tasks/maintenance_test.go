// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSessionSweeper struct {
	calls int
	err   error
}

func (f *fakeSessionSweeper) CleanupExpired(ctx context.Context) (int, error) {
	f.calls++
	return 2, f.err
}

type fakeBlockSweeper struct {
	calls  int
	cutoff time.Time
}

func (f *fakeBlockSweeper) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	f.calls++
	f.cutoff = cutoff
	return 1, nil
}

type fakeAuditSweeper struct {
	calls  int
	cutoff time.Time
}

func (f *fakeAuditSweeper) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	f.calls++
	f.cutoff = olderThan
	return 10, nil
}

type fakeForensicSweeper struct {
	calls int
}

func (f *fakeForensicSweeper) DeleteExpired(ctx context.Context) (int64, error) {
	f.calls++
	return 5, nil
}

type fakeReportSweeper struct {
	calls int
	paths []string
}

func (f *fakeReportSweeper) DeleteFinishedReports(ctx context.Context, olderThan time.Time) ([]string, error) {
	f.calls++
	return f.paths, nil
}

func TestSweeperRunsAllTargets(t *testing.T) {
	dir := t.TempDir()
	reportFile := filepath.Join(dir, "old-report.csv")
	if err := os.WriteFile(reportFile, []byte("a,b\n"), 0o600); err != nil {
		t.Fatalf("write report file: %v", err)
	}

	sessions := &fakeSessionSweeper{}
	blocks := &fakeBlockSweeper{}
	audit := &fakeAuditSweeper{}
	forensics := &fakeForensicSweeper{}
	reports := &fakeReportSweeper{paths: []string{reportFile, ""}}

	cfg := SweeperConfig{
		BlockGracePeriod: 6 * time.Hour,
		AuditRetention:   30 * 24 * time.Hour,
		ReportRetention:  24 * time.Hour,
	}
	sweeper := NewSweeper(cfg, sessions, blocks, audit, forensics, reports, NewPoisonLog(DefaultPoisonLogConfig()))

	if err := sweeper.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sessions.calls != 1 || blocks.calls != 1 || audit.calls != 1 || forensics.calls != 1 || reports.calls != 1 {
		t.Errorf("expected every target swept once: %d %d %d %d %d",
			sessions.calls, blocks.calls, audit.calls, forensics.calls, reports.calls)
	}
	if since := time.Since(blocks.cutoff); since < 5*time.Hour || since > 7*time.Hour {
		t.Errorf("expected cutoff about six hours back, got %v", blocks.cutoff)
	}
	if time.Since(audit.cutoff) < 29*24*time.Hour {
		t.Errorf("unexpected audit cutoff: %v", audit.cutoff)
	}
	if _, err := os.Stat(reportFile); !os.IsNotExist(err) {
		t.Error("expected expired report file removed")
	}
}

func TestSweeperContinuesPastFailures(t *testing.T) {
	sessions := &fakeSessionSweeper{err: errors.New("badger closed")}
	blocks := &fakeBlockSweeper{}

	sweeper := NewSweeper(DefaultSweeperConfig(), sessions, blocks, nil, nil, nil, nil)

	err := sweeper.Run(context.Background())
	if err == nil {
		t.Fatal("expected joined error from failing target")
	}
	if blocks.calls != 1 {
		t.Error("expected later targets still swept after a failure")
	}
}

func TestSweeperSkipsNilTargets(t *testing.T) {
	sweeper := NewSweeper(DefaultSweeperConfig(), nil, nil, nil, nil, nil, nil)
	if err := sweeper.Run(context.Background()); err != nil {
		t.Errorf("expected empty sweep to succeed, got %v", err)
	}
}

func TestMaintenanceHandlerRejectsUnknownType(t *testing.T) {
	sweeper := NewSweeper(DefaultSweeperConfig(), nil, nil, nil, nil, nil, nil)
	handler := sweeper.Handler()

	task, err := NewTask("maintenance.defragment", "", "", nil)
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if err := handler(context.Background(), task); err == nil {
		t.Error("expected error for unknown maintenance task type")
	}

	sweep, err := NewTask(TaskMaintenanceSweep, "", "", nil)
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if err := handler(context.Background(), sweep); err != nil {
		t.Errorf("expected sweep to succeed, got %v", err)
	}
}
