// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package backup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePassesIntactArchive(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.manager.CreateBackup(context.Background(), TriggerManual, "")
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	result, err := env.manager.Validate(b.ID)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.Valid || !result.ChecksumMatch || !result.ManifestFound {
		t.Errorf("expected valid archive: %+v", result)
	}
}

func TestValidateDetectsTampering(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.manager.CreateBackup(context.Background(), TriggerManual, "")
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	// Flip a byte in the middle of the archive.
	data, err := os.ReadFile(b.FilePath)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	data[len(data)/2] ^= 0xff
	if err := os.WriteFile(b.FilePath, data, 0o600); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	result, err := env.manager.Validate(b.ID)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.Valid || result.ChecksumMatch {
		t.Errorf("expected tampering detected: %+v", result)
	}

	got, err := env.manager.Get(b.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusCorrupted {
		t.Errorf("expected status corrupted, got %s", got.Status)
	}
}

func TestRestoreDatabase(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.manager.CreateBackup(context.Background(), TriggerManual, "")
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	// Simulate writes after the backup.
	if err := os.WriteFile(env.db.path, []byte("duckdb-v2"), 0o600); err != nil {
		t.Fatalf("overwrite database: %v", err)
	}

	result, err := env.manager.Restore(context.Background(), b.ID, RestoreOptions{RestoreDatabase: true})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !result.DatabaseRestored || !result.RestartRequired {
		t.Errorf("unexpected result: %+v", result)
	}

	data, err := os.ReadFile(env.db.path)
	if err != nil {
		t.Fatalf("read database: %v", err)
	}
	if !bytes.Equal(data, []byte("duckdb-v1")) {
		t.Errorf("expected database rolled back, got %q", data)
	}
}

func TestRestoreKVReplaysSnapshot(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.manager.CreateBackup(context.Background(), TriggerManual, "")
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	result, err := env.manager.Restore(context.Background(), b.ID, RestoreOptions{RestoreKV: true})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !result.KVRestored {
		t.Errorf("unexpected result: %+v", result)
	}
	if !bytes.Equal(env.kv.loaded, []byte("badger-snapshot")) {
		t.Errorf("expected snapshot replayed, got %q", env.kv.loaded)
	}
	if result.DatabaseRestored {
		t.Error("database must not be touched on a kv-only restore")
	}
}

func TestRestoreReports(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.manager.CreateBackup(context.Background(), TriggerManual, "")
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	reportPath := filepath.Join(env.reportsDir, "acme", "r1.csv")
	if err := os.Remove(reportPath); err != nil {
		t.Fatalf("remove report: %v", err)
	}

	result, err := env.manager.Restore(context.Background(), b.ID, RestoreOptions{RestoreReports: true})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if result.ReportsRestored != 1 {
		t.Errorf("expected 1 report restored, got %d", result.ReportsRestored)
	}
	if _, err := os.Stat(reportPath); err != nil {
		t.Errorf("expected report file back on disk: %v", err)
	}
}

func TestRestoreValidateOnlyTouchesNothing(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.manager.CreateBackup(context.Background(), TriggerManual, "")
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}
	if err := os.WriteFile(env.db.path, []byte("duckdb-v2"), 0o600); err != nil {
		t.Fatalf("overwrite database: %v", err)
	}

	result, err := env.manager.Restore(context.Background(), b.ID, RestoreOptions{
		ValidateOnly:    true,
		RestoreDatabase: true,
	})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !result.Validated || result.DatabaseRestored {
		t.Errorf("unexpected result: %+v", result)
	}

	data, _ := os.ReadFile(env.db.path)
	if !bytes.Equal(data, []byte("duckdb-v2")) {
		t.Error("validate-only run must not modify the database")
	}
}

func TestRestoreRejectsEmptySelection(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.manager.CreateBackup(context.Background(), TriggerManual, "")
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	if _, err := env.manager.Restore(context.Background(), b.ID, RestoreOptions{}); err == nil {
		t.Error("expected error when nothing is selected")
	}
}

func TestRestoreRefusesTamperedArchive(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.manager.CreateBackup(context.Background(), TriggerManual, "")
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	// Tamper with the recorded checksum rather than the file, keeping
	// the archive itself readable for the Force path.
	env.manager.mu.Lock()
	b.Checksum = "0000"
	env.manager.mu.Unlock()

	if _, err := env.manager.Restore(context.Background(), b.ID, RestoreOptions{RestoreKV: true}); err == nil {
		t.Fatal("expected restore refused on checksum mismatch")
	}

	result, err := env.manager.Restore(context.Background(), b.ID, RestoreOptions{RestoreKV: true, Force: true})
	if err != nil {
		t.Fatalf("forced restore failed: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected warning on forced restore")
	}
	if !result.KVRestored {
		t.Error("expected kv restored under force")
	}
}

func TestRestoreCreatesPreRestoreBackup(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.manager.CreateBackup(context.Background(), TriggerManual, "")
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	result, err := env.manager.Restore(context.Background(), b.ID, RestoreOptions{
		RestoreDatabase:        true,
		CreatePreRestoreBackup: true,
	})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if result.PreRestoreBackup == "" {
		t.Fatal("expected pre-restore backup recorded")
	}

	pre, err := env.manager.Get(result.PreRestoreBackup)
	if err != nil {
		t.Fatalf("Get pre-restore backup failed: %v", err)
	}
	if pre.Trigger != TriggerPreRestore {
		t.Errorf("unexpected trigger: %s", pre.Trigger)
	}
}

func TestSafeJoinRejectsTraversal(t *testing.T) {
	if _, err := safeJoin("/data/reports", "../etc/passwd"); err == nil {
		t.Error("expected traversal rejected")
	}
	if _, err := safeJoin("/data/reports", "acme/r1.csv"); err != nil {
		t.Errorf("expected clean path accepted, got %v", err)
	}
}
