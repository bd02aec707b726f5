// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/audit"
	"github.com/tomtom215/custodia/internal/metrics"
)

const (
	manifestName    = "manifest.json"
	archiveDBPath   = "database/custodia.duckdb"
	archiveKVPath   = "kv/badger.snapshot"
	archiveFilesDir = "files"
)

// CreateBackup checkpoints the database and writes a tar.gz archive of
// the database file, the Badger snapshot, and the report files. The
// returned Backup is already recorded in the metadata store, with
// Status telling whether the run succeeded.
func (m *Manager) CreateBackup(ctx context.Context, trigger Trigger, notes string) (*Backup, error) {
	start := time.Now()

	b := &Backup{
		ID:         fmt.Sprintf("%s-%s", start.UTC().Format("20060102-150405"), uuid.NewString()[:8]),
		Trigger:    trigger,
		Status:     StatusInProgress,
		CreatedAt:  start.UTC(),
		AppVersion: AppVersion,
		Notes:      notes,
	}
	b.FilePath = filepath.Join(m.cfg.Dir, fmt.Sprintf("custodia-backup-%s.tar.gz", b.ID))

	m.mu.Lock()
	m.metadata.Backups = append(m.metadata.Backups, b)
	if trigger == TriggerScheduled {
		now := start.UTC()
		m.metadata.LastScheduled = &now
	}
	if err := m.saveMetadataLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	err := m.writeArchive(ctx, b)
	duration := time.Since(start)

	m.mu.Lock()
	b.Duration = duration
	if err != nil {
		b.Status = StatusFailed
		b.Error = err.Error()
		if rmErr := os.Remove(b.FilePath); rmErr != nil && !os.IsNotExist(rmErr) {
			m.logger.Warn().Err(rmErr).Str("path", b.FilePath).Msg("Failed to remove partial backup archive")
		}
	} else {
		now := time.Now().UTC()
		b.Status = StatusCompleted
		b.CompletedAt = &now
	}
	if saveErr := m.saveMetadataLocked(); saveErr != nil && err == nil {
		err = saveErr
	}
	m.mu.Unlock()

	metrics.RecordBackup(duration, err)
	m.auditRun(ctx, audit.EventTypeDataBackup, b.ID, err)

	if err != nil {
		m.logger.Error().Err(err).Str("backup_id", b.ID).Msg("Backup failed")
		return b, fmt.Errorf("backup %s failed: %w", b.ID, err)
	}

	m.logger.Info().
		Str("backup_id", b.ID).
		Str("trigger", string(trigger)).
		Int64("size_bytes", b.FileSize).
		Dur("duration", duration).
		Msg("Backup completed")
	return b, nil
}

func (m *Manager) writeArchive(ctx context.Context, b *Backup) error {
	// Checkpoint first so the copied database file is self-contained.
	if err := m.db.Checkpoint(ctx); err != nil {
		return fmt.Errorf("pre-backup checkpoint failed: %w", err)
	}

	if counts, err := m.db.GetRecordCounts(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to collect record counts for backup manifest")
	} else {
		b.Counts = counts
	}

	outFile, err := os.OpenFile(b.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create backup archive: %w", err)
	}
	defer outFile.Close() //nolint:errcheck // Best effort cleanup

	gzWriter := gzip.NewWriter(outFile)
	tarWriter := tar.NewWriter(gzWriter)

	if err := m.addDatabase(tarWriter, b); err != nil {
		return err
	}
	if err := m.addKVSnapshot(tarWriter, b); err != nil {
		return err
	}
	if err := m.addReportFiles(tarWriter, b); err != nil {
		return err
	}
	if err := m.addManifest(tarWriter, b); err != nil {
		return err
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to finalize compression: %w", err)
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}

	checksum, size, err := fileChecksum(b.FilePath)
	if err != nil {
		return err
	}
	b.Checksum = checksum
	b.FileSize = size
	return nil
}

func (m *Manager) addDatabase(tw *tar.Writer, b *Backup) error {
	dbPath := m.db.GetDatabasePath()
	if err := addFile(tw, dbPath, archiveDBPath); err != nil {
		return fmt.Errorf("failed to archive database: %w", err)
	}
	b.Contents.DatabaseFile = archiveDBPath

	// The WAL should be empty after the checkpoint, but a write racing
	// the backup can recreate it. Include it so a restore never loses
	// those records.
	walPath := dbPath + ".wal"
	if _, err := os.Stat(walPath); err == nil {
		if err := addFile(tw, walPath, archiveDBPath+".wal"); err != nil {
			return fmt.Errorf("failed to archive WAL: %w", err)
		}
	}
	return nil
}

func (m *Manager) addKVSnapshot(tw *tar.Writer, b *Backup) error {
	if m.kv == nil {
		return nil
	}

	// Badger streams its backup, so stage it in a temp file to learn the
	// size before writing the tar header.
	tmp, err := os.CreateTemp(m.cfg.Dir, "kv-snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to stage kv snapshot: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Best effort cleanup
	defer tmp.Close()           //nolint:errcheck // Best effort cleanup

	if _, err := m.kv.Backup(tmp, 0); err != nil {
		return fmt.Errorf("kv snapshot failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to flush kv snapshot: %w", err)
	}

	if err := addFile(tw, tmp.Name(), archiveKVPath); err != nil {
		return fmt.Errorf("failed to archive kv snapshot: %w", err)
	}
	b.Contents.KVSnapshot = archiveKVPath
	return nil
}

func (m *Manager) addReportFiles(tw *tar.Writer, b *Backup) error {
	if m.reportsDir == "" {
		return nil
	}
	if _, err := os.Stat(m.reportsDir); os.IsNotExist(err) {
		return nil
	}

	return filepath.WalkDir(m.reportsDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(m.reportsDir, p)
		if err != nil {
			return err
		}
		dest := path.Join(archiveFilesDir, filepath.ToSlash(rel))
		if err := addFile(tw, p, dest); err != nil {
			return fmt.Errorf("failed to archive %s: %w", rel, err)
		}
		b.Contents.ReportFiles = append(b.Contents.ReportFiles, dest)
		return nil
	})
}

func (m *Manager) addManifest(tw *tar.Writer, b *Backup) error {
	// The manifest carries everything known before the archive is
	// sealed; checksum and size describe the archive itself and live in
	// the external metadata store only.
	manifest := *b
	manifest.Checksum = ""
	manifest.FileSize = 0

	data, err := json.MarshalIndent(&manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	header := &tar.Header{
		Name:    manifestName,
		Mode:    0o640,
		Size:    int64(len(data)),
		ModTime: time.Now().UTC(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write manifest header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

//nolint:gosec // G304: srcPath comes from our own config and temp files
func addFile(tw *tar.Writer, srcPath, destPath string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck // Best effort cleanup

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = destPath

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if _, err := io.Copy(tw, file); err != nil {
		return err
	}
	return nil
}

//nolint:gosec // G304: path comes from our own metadata
func fileChecksum(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open archive for checksum: %w", err)
	}
	defer file.Close() //nolint:errcheck // Best effort cleanup

	hasher := sha256.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, fmt.Errorf("failed to checksum archive: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
