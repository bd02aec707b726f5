// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/custodia/internal/audit"
	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/logging"
)

const metadataFileName = "metadata.json"

// Database is the slice of the database layer the manager needs.
// *database.DB satisfies it.
type Database interface {
	GetDatabasePath() string
	Checkpoint(ctx context.Context) error
	GetRecordCounts(ctx context.Context) (*database.RecordCounts, error)
}

// KVStore is the Badger surface used for snapshot and restore.
// *badger.DB satisfies it.
type KVStore interface {
	Backup(w io.Writer, since uint64) (uint64, error)
	Load(r io.Reader, maxPendingWrites int) error
}

// Auditor records backup and restore runs in the audit trail.
// *audit.Logger satisfies it.
type Auditor interface {
	LogBackup(ctx context.Context, eventType audit.EventType, backupID string, backupErr error)
}

// Manager creates, lists, prunes, and restores backup archives.
type Manager struct {
	cfg        *config.BackupConfig
	db         Database
	kv         KVStore
	auditor    Auditor
	reportsDir string

	mu       sync.RWMutex
	metadata *metadataStore

	logger zerolog.Logger
}

// metadataStore is persisted as metadata.json in the backup directory.
type metadataStore struct {
	Backups       []*Backup       `json:"backups"`
	LastScheduled *time.Time      `json:"last_scheduled,omitempty"`
	Retention     RetentionPolicy `json:"retention"`
}

// NewManager loads existing metadata from the backup directory, creating
// the directory if needed. kv, auditor, and reportsDir may be zero when
// the corresponding content should not be archived.
func NewManager(cfg *config.BackupConfig, db Database, kv KVStore, auditor Auditor, reportsDir string) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backup configuration is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	m := &Manager{
		cfg:        cfg,
		db:         db,
		kv:         kv,
		auditor:    auditor,
		reportsDir: reportsDir,
		logger:     logging.WithComponent("backup"),
	}

	if err := m.loadMetadata(); err != nil {
		m.metadata = &metadataStore{
			Backups: make([]*Backup, 0),
			Retention: RetentionPolicy{
				MaxCount: cfg.RetentionCount,
				MaxAge:   cfg.RetentionAge,
			},
		}
	}

	return m, nil
}

func (m *Manager) metadataPath() string {
	return filepath.Join(m.cfg.Dir, metadataFileName)
}

func (m *Manager) loadMetadata() error {
	data, err := os.ReadFile(m.metadataPath())
	if err != nil {
		return err
	}

	store := &metadataStore{}
	if err := json.Unmarshal(data, store); err != nil {
		return fmt.Errorf("failed to parse backup metadata: %w", err)
	}
	if store.Retention.MaxCount <= 0 {
		store.Retention.MaxCount = m.cfg.RetentionCount
	}
	if store.Retention.MaxAge <= 0 {
		store.Retention.MaxAge = m.cfg.RetentionAge
	}

	m.mu.Lock()
	m.metadata = store
	m.mu.Unlock()
	return nil
}

// saveMetadataLocked writes metadata.json. Caller holds m.mu.
func (m *Manager) saveMetadataLocked() error {
	data, err := json.MarshalIndent(m.metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal backup metadata: %w", err)
	}

	tmp := m.metadataPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("failed to write backup metadata: %w", err)
	}
	if err := os.Rename(tmp, m.metadataPath()); err != nil {
		return fmt.Errorf("failed to replace backup metadata: %w", err)
	}
	return nil
}

// List returns all known backups, newest first.
func (m *Manager) List() []*Backup {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Backup, len(m.metadata.Backups))
	copy(out, m.metadata.Backups)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Get returns the backup with the given ID.
func (m *Manager) Get(id string) (*Backup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, b := range m.metadata.Backups {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, fmt.Errorf("backup %s: %w", id, database.ErrNotFound)
}

// Delete removes a backup archive and its metadata entry.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(id)
}

func (m *Manager) deleteLocked(id string) error {
	for i, b := range m.metadata.Backups {
		if b.ID != id {
			continue
		}
		if b.FilePath != "" {
			if err := os.Remove(b.FilePath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove backup archive: %w", err)
			}
		}
		m.metadata.Backups = append(m.metadata.Backups[:i], m.metadata.Backups[i+1:]...)
		return m.saveMetadataLocked()
	}
	return fmt.Errorf("backup %s: %w", id, database.ErrNotFound)
}

// Stats summarizes the metadata store.
func (m *Manager) Stats() *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{
		Total:         len(m.metadata.Backups),
		LastScheduled: m.metadata.LastScheduled,
	}
	for _, b := range m.metadata.Backups {
		switch b.Status {
		case StatusCompleted:
			stats.Completed++
			stats.TotalSize += b.FileSize
			if b.CompletedAt != nil && (stats.LastSuccess == nil || b.CompletedAt.After(*stats.LastSuccess)) {
				stats.LastSuccess = b.CompletedAt
			}
		case StatusFailed, StatusCorrupted:
			stats.Failed++
		}
	}
	return stats
}

// Retention returns the active retention policy.
func (m *Manager) Retention() RetentionPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadata.Retention
}

// Open returns a reader over a completed backup archive for download.
func (m *Manager) Open(id string) (io.ReadCloser, *Backup, error) {
	b, err := m.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if b.Status != StatusCompleted {
		return nil, nil, fmt.Errorf("backup %s is %s, not completed", id, b.Status)
	}
	f, err := os.Open(b.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open backup archive: %w", err)
	}
	return f, b, nil
}

func (m *Manager) auditRun(ctx context.Context, eventType audit.EventType, backupID string, runErr error) {
	if m.auditor != nil {
		m.auditor.LogBackup(ctx, eventType, backupID, runErr)
	}
}
