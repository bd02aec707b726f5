// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package backup

import (
	"time"

	"github.com/tomtom215/custodia/internal/database"
)

// AppVersion is set at build time.
var AppVersion = "dev"

// Trigger records what started a backup run.
type Trigger string

const (
	TriggerManual     Trigger = "manual"
	TriggerScheduled  Trigger = "scheduled"
	TriggerPreRestore Trigger = "pre_restore"
)

// Status tracks a backup through its lifecycle.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCorrupted  Status = "corrupted"
)

// Backup describes one archive and its provenance.
type Backup struct {
	ID          string                 `json:"id"`
	Trigger     Trigger                `json:"trigger"`
	Status      Status                 `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Duration    time.Duration          `json:"duration,omitempty"`
	FilePath    string                 `json:"file_path"`
	FileSize    int64                  `json:"file_size"`
	Checksum    string                 `json:"checksum,omitempty"` // SHA-256 of the archive
	AppVersion  string                 `json:"app_version"`
	Counts      *database.RecordCounts `json:"record_counts,omitempty"`
	Contents    Contents               `json:"contents"`
	Notes       string                 `json:"notes,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Contents lists what the archive holds. The manifest inside the
// archive carries the same structure so a restore can be selective
// without trusting external metadata.
type Contents struct {
	DatabaseFile string   `json:"database_file,omitempty"` // archive path of the DuckDB copy
	KVSnapshot   string   `json:"kv_snapshot,omitempty"`   // archive path of the Badger snapshot
	ReportFiles  []string `json:"report_files,omitempty"`  // archive paths under files/
}

// RetentionPolicy bounds how many archives are kept and for how long.
// The most recent completed backup is always retained.
type RetentionPolicy struct {
	MaxCount int           `json:"max_count"`
	MaxAge   time.Duration `json:"max_age"`
}

// RestoreOptions selects what a restore touches.
type RestoreOptions struct {
	// ValidateOnly checks archive integrity and the manifest without
	// extracting anything.
	ValidateOnly bool

	// CreatePreRestoreBackup takes a safety backup before overwriting.
	CreatePreRestoreBackup bool

	RestoreDatabase bool
	RestoreKV       bool
	RestoreReports  bool

	// Force restores even when the recorded checksum does not match.
	Force bool
}

// RestoreResult reports what a restore did.
type RestoreResult struct {
	BackupID         string        `json:"backup_id"`
	Validated        bool          `json:"validated"`
	DatabaseRestored bool          `json:"database_restored"`
	KVRestored       bool          `json:"kv_restored"`
	ReportsRestored  int           `json:"reports_restored"`
	PreRestoreBackup string        `json:"pre_restore_backup,omitempty"`
	RestartRequired  bool          `json:"restart_required"`
	Duration         time.Duration `json:"duration"`
	Warnings         []string      `json:"warnings,omitempty"`
}

// ValidationResult reports an archive integrity check.
type ValidationResult struct {
	BackupID      string   `json:"backup_id"`
	Valid         bool     `json:"valid"`
	ChecksumMatch bool     `json:"checksum_match"`
	ManifestFound bool     `json:"manifest_found"`
	Errors        []string `json:"errors,omitempty"`
}

// Stats aggregates the metadata store for the monitoring API.
type Stats struct {
	Total         int        `json:"total"`
	Completed     int        `json:"completed"`
	Failed        int        `json:"failed"`
	TotalSize     int64      `json:"total_size_bytes"`
	LastSuccess   *time.Time `json:"last_success,omitempty"`
	LastScheduled *time.Time `json:"last_scheduled,omitempty"`
}
