// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tomtom215/custodia/internal/logging"
)

// TaskMaintenanceSweep is the periodic housekeeping task type.
const TaskMaintenanceSweep = "maintenance.sweep"

// Sweep target interfaces, kept narrow so the sweeper depends on
// behavior rather than packages.
type (
	// SessionSweeper removes expired sessions.
	SessionSweeper interface {
		CleanupExpired(ctx context.Context) (int, error)
	}

	// BlockSweeper removes IP blocks that lapsed before the cutoff.
	BlockSweeper interface {
		PurgeExpired(ctx context.Context, cutoff time.Time) (int, error)
	}

	// AuditSweeper trims audit events past retention.
	AuditSweeper interface {
		DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
	}

	// ForensicSweeper trims forensic events past retention.
	ForensicSweeper interface {
		DeleteExpired(ctx context.Context) (int64, error)
	}

	// ReportSweeper deletes finished report rows and returns the file
	// paths they pointed at.
	ReportSweeper interface {
		DeleteFinishedReports(ctx context.Context, olderThan time.Time) ([]string, error)
	}
)

// SweeperConfig holds retention windows for the maintenance sweep.
type SweeperConfig struct {
	BlockGracePeriod time.Duration
	AuditRetention   time.Duration
	ReportRetention  time.Duration
}

// DefaultSweeperConfig returns production retention defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		BlockGracePeriod: 24 * time.Hour,
		AuditRetention:   365 * 24 * time.Hour,
		ReportRetention:  30 * 24 * time.Hour,
	}
}

// Sweeper runs the housekeeping pass on the maintenance queue. Any nil
// target is skipped, so partial wiring in tests stays cheap. CSRF
// tokens need no sweep; their store expires entries natively.
type Sweeper struct {
	config    SweeperConfig
	sessions  SessionSweeper
	blocks    BlockSweeper
	audit     AuditSweeper
	forensics ForensicSweeper
	reports   ReportSweeper
	poison    *PoisonLog
}

// NewSweeper creates a sweeper over the given targets.
func NewSweeper(cfg SweeperConfig, sessions SessionSweeper, blocks BlockSweeper, audit AuditSweeper, forensics ForensicSweeper, reports ReportSweeper, poison *PoisonLog) *Sweeper {
	return &Sweeper{
		config:    cfg,
		sessions:  sessions,
		blocks:    blocks,
		audit:     audit,
		forensics: forensics,
		reports:   reports,
		poison:    poison,
	}
}

// Run executes every sweep. A failing target does not stop the others;
// all errors come back joined.
func (s *Sweeper) Run(ctx context.Context) error {
	log := logging.Ctx(ctx)
	var errs []error

	if s.sessions != nil {
		if n, err := s.sessions.CleanupExpired(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session sweep: %w", err))
		} else if n > 0 {
			log.Info().Int("removed", n).Msg("Swept expired sessions")
		}
	}

	if s.blocks != nil {
		if n, err := s.blocks.PurgeExpired(ctx, time.Now().Add(-s.config.BlockGracePeriod)); err != nil {
			errs = append(errs, fmt.Errorf("block sweep: %w", err))
		} else if n > 0 {
			log.Info().Int("removed", n).Msg("Swept lapsed IP blocks")
		}
	}

	if s.audit != nil {
		if n, err := s.audit.DeleteOlderThan(ctx, time.Now().Add(-s.config.AuditRetention)); err != nil {
			errs = append(errs, fmt.Errorf("audit sweep: %w", err))
		} else if n > 0 {
			log.Info().Int64("removed", n).Msg("Swept audit events past retention")
		}
	}

	if s.forensics != nil {
		if n, err := s.forensics.DeleteExpired(ctx); err != nil {
			errs = append(errs, fmt.Errorf("forensic sweep: %w", err))
		} else if n > 0 {
			log.Info().Int64("removed", n).Msg("Swept forensic events past retention")
		}
	}

	if s.reports != nil {
		paths, err := s.reports.DeleteFinishedReports(ctx, time.Now().Add(-s.config.ReportRetention))
		if err != nil {
			errs = append(errs, fmt.Errorf("report sweep: %w", err))
		} else {
			for _, path := range paths {
				if path == "" {
					continue
				}
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					log.Warn().Str("path", path).Err(err).Msg("Failed to remove report file")
				}
			}
			if len(paths) > 0 {
				log.Info().Int("removed", len(paths)).Msg("Swept finished reports")
			}
		}
	}

	if s.poison != nil {
		if n := s.poison.Cleanup(); n > 0 {
			log.Info().Int("removed", n).Msg("Swept poison log entries past retention")
		}
	}

	return errors.Join(errs...)
}

// Handler returns the handler for the maintenance queue.
func (s *Sweeper) Handler() TaskHandler {
	return func(ctx context.Context, task *Task) error {
		if task.Type != TaskMaintenanceSweep {
			return fmt.Errorf("unknown maintenance task type %q", task.Type)
		}
		return s.Run(ctx)
	}
}

// Scheduler enqueues maintenance sweeps on an interval. It runs as a
// supervised service.
type Scheduler struct {
	publisher *Publisher
	interval  time.Duration
}

// NewScheduler creates a maintenance scheduler.
func NewScheduler(publisher *Publisher, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{publisher: publisher, interval: interval}
}

// Serve publishes a sweep task per interval until context cancellation.
// Matches the suture service signature.
func (s *Scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			task, err := NewTask(TaskMaintenanceSweep, "", "", nil)
			if err != nil {
				return err
			}
			if err := s.publisher.Enqueue(ctx, QueueMaintenance, task); err != nil {
				logging.Error().Err(err).Msg("Failed to enqueue maintenance sweep")
			}
		}
	}
}

func (s *Scheduler) String() string { return "tasks.maintenance-scheduler" }
