// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package backup

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSchedulerRunsBackupsOnInterval(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Interval = 20 * time.Millisecond

	scheduler := NewScheduler(env.manager)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- scheduler.Serve(ctx) }()

	deadline := time.After(5 * time.Second)
	for env.manager.Stats().Completed == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a scheduled backup")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}

	if env.manager.Stats().LastScheduled == nil {
		t.Error("expected last scheduled timestamp recorded")
	}
}

func TestSchedulerDefaultsInterval(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Interval = 0

	scheduler := NewScheduler(env.manager)
	if scheduler.interval != 24*time.Hour {
		t.Errorf("expected 24h default, got %v", scheduler.interval)
	}
	if scheduler.String() != "backup.scheduler" {
		t.Errorf("unexpected service name: %s", scheduler.String())
	}
}
