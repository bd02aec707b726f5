// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package backup

import (
	"context"
	"time"
)

// Scheduler runs periodic backups followed by retention pruning. It
// implements the suture service contract and is meant to live in the
// storage layer of the supervision tree.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
}

// NewScheduler builds a scheduler around the manager using the
// configured backup interval.
func NewScheduler(manager *Manager) *Scheduler {
	interval := manager.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{manager: manager, interval: interval}
}

// Serve runs the backup loop until the context is canceled. A failed
// run is logged and retried at the next tick rather than crashing the
// service.
func (s *Scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.manager.logger.Info().
		Dur("interval", s.interval).
		Msg("Backup scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.manager.CreateBackup(ctx, TriggerScheduled, ""); err != nil {
				// CreateBackup already logged and recorded the failure.
				continue
			}
			if _, err := s.manager.ApplyRetention(ctx); err != nil {
				s.manager.logger.Warn().Err(err).Msg("Backup retention pass failed")
			}
		}
	}
}

func (s *Scheduler) String() string {
	return "backup.scheduler"
}
