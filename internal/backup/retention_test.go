// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package backup

import (
	"context"
	"testing"
	"time"
)

// backdate shifts a backup's creation time. Tests use it instead of
// sleeping between runs.
func backdate(t *testing.T, m *Manager, id string, age time.Duration) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.metadata.Backups {
		if b.ID == id {
			b.CreatedAt = time.Now().Add(-age)
			return
		}
	}
	t.Fatalf("backup %s not found", id)
}

func createN(t *testing.T, m *Manager, n int) []*Backup {
	t.Helper()
	out := make([]*Backup, 0, n)
	for i := 0; i < n; i++ {
		b, err := m.CreateBackup(context.Background(), TriggerScheduled, "")
		if err != nil {
			t.Fatalf("CreateBackup %d failed: %v", i, err)
		}
		out = append(out, b)
	}
	return out
}

func TestRetentionPrunesByCount(t *testing.T) {
	env := newTestEnv(t)
	backups := createN(t, env.manager, 4)
	for i, b := range backups {
		backdate(t, env.manager, b.ID, time.Duration(len(backups)-i)*time.Hour)
	}

	if err := env.manager.SetRetention(RetentionPolicy{MaxCount: 2, MaxAge: 30 * 24 * time.Hour}); err != nil {
		t.Fatalf("SetRetention failed: %v", err)
	}

	removed, err := env.manager.ApplyRetention(context.Background())
	if err != nil {
		t.Fatalf("ApplyRetention failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	list := env.manager.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 kept, got %d", len(list))
	}
	// The two oldest are gone.
	for _, b := range list {
		if b.ID == backups[0].ID || b.ID == backups[1].ID {
			t.Errorf("expected oldest pruned, found %s", b.ID)
		}
	}
}

func TestRetentionPrunesByAge(t *testing.T) {
	env := newTestEnv(t)
	backups := createN(t, env.manager, 3)
	backdate(t, env.manager, backups[0].ID, 40*24*time.Hour)
	backdate(t, env.manager, backups[1].ID, 35*24*time.Hour)

	removed, err := env.manager.ApplyRetention(context.Background())
	if err != nil {
		t.Fatalf("ApplyRetention failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, err := env.manager.Get(backups[2].ID); err != nil {
		t.Errorf("expected recent backup kept: %v", err)
	}
}

func TestRetentionAlwaysKeepsNewestCompleted(t *testing.T) {
	env := newTestEnv(t)
	backups := createN(t, env.manager, 1)
	backdate(t, env.manager, backups[0].ID, 365*24*time.Hour)

	removed, err := env.manager.ApplyRetention(context.Background())
	if err != nil {
		t.Fatalf("ApplyRetention failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected sole backup kept despite age, removed %d", removed)
	}
}

func TestRetentionPrunesOldFailures(t *testing.T) {
	env := newTestEnv(t)

	env.db.checkpointErr = context.DeadlineExceeded
	failed, _ := env.manager.CreateBackup(context.Background(), TriggerScheduled, "")
	env.db.checkpointErr = nil

	createN(t, env.manager, 1)
	backdate(t, env.manager, failed.ID, 40*24*time.Hour)

	removed, err := env.manager.ApplyRetention(context.Background())
	if err != nil {
		t.Fatalf("ApplyRetention failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected old failed backup pruned, removed %d", removed)
	}
}

func TestSetRetentionRejectsInvalidPolicy(t *testing.T) {
	env := newTestEnv(t)

	if err := env.manager.SetRetention(RetentionPolicy{MaxCount: 0}); err == nil {
		t.Error("expected zero max_count rejected")
	}
	if err := env.manager.SetRetention(RetentionPolicy{MaxCount: 5, MaxAge: -time.Hour}); err == nil {
		t.Error("expected negative max_age rejected")
	}
	if err := env.manager.SetRetention(RetentionPolicy{MaxCount: 5, MaxAge: time.Hour}); err != nil {
		t.Errorf("expected valid policy accepted, got %v", err)
	}
	if got := env.manager.Retention(); got.MaxCount != 5 {
		t.Errorf("expected policy applied, got %+v", got)
	}
}
