// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/audit"
)

// maxExtractSize caps a single extracted file to guard against
// decompression bombs in imported archives.
const maxExtractSize = 10 << 30 // 10 GiB

// kvRestorePendingWrites is passed to Badger's Load as the write
// concurrency during snapshot replay.
const kvRestorePendingWrites = 256

// Validate checks a backup archive without touching any data store:
// the recorded SHA-256 must match the file on disk and the archive must
// carry a readable manifest.
func (m *Manager) Validate(id string) (*ValidationResult, error) {
	b, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{BackupID: id}

	checksum, _, err := fileChecksum(b.FilePath)
	switch {
	case err != nil:
		result.Errors = append(result.Errors, fmt.Sprintf("archive unreadable: %v", err))
	case b.Checksum == "":
		result.Errors = append(result.Errors, "no checksum recorded")
	case checksum != b.Checksum:
		result.Errors = append(result.Errors, "checksum mismatch")
	default:
		result.ChecksumMatch = true
	}

	if _, err := m.readManifest(b.FilePath); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("manifest: %v", err))
	} else {
		result.ManifestFound = true
	}

	result.Valid = result.ChecksumMatch && result.ManifestFound

	if !result.Valid && b.Status == StatusCompleted {
		m.mu.Lock()
		b.Status = StatusCorrupted
		if err := m.saveMetadataLocked(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to persist corrupted backup status")
		}
		m.mu.Unlock()
	}

	return result, nil
}

// Restore replays a backup archive into the selected data stores. The
// archive is validated first unless opts.Force is set. A database
// restore overwrites the DuckDB file in place; the caller must restart
// the server afterwards so connections reopen against the restored
// file.
func (m *Manager) Restore(ctx context.Context, id string, opts RestoreOptions) (*RestoreResult, error) {
	start := time.Now()

	b, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{BackupID: id}

	validation, err := m.Validate(id)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		if !opts.Force {
			return nil, fmt.Errorf("backup %s failed validation: %s", id, strings.Join(validation.Errors, "; "))
		}
		result.Warnings = append(result.Warnings, "validation failed, restoring anyway: "+strings.Join(validation.Errors, "; "))
	}
	result.Validated = validation.Valid

	if opts.ValidateOnly {
		result.Duration = time.Since(start)
		return result, nil
	}

	if !opts.RestoreDatabase && !opts.RestoreKV && !opts.RestoreReports {
		return nil, fmt.Errorf("nothing selected to restore")
	}

	manifest, err := m.readManifest(b.FilePath)
	if err != nil && !opts.Force {
		return nil, fmt.Errorf("backup %s manifest unreadable: %w", id, err)
	}
	if manifest != nil {
		if opts.RestoreDatabase && manifest.Contents.DatabaseFile == "" {
			return nil, fmt.Errorf("backup %s does not contain a database", id)
		}
		if opts.RestoreKV && manifest.Contents.KVSnapshot == "" {
			return nil, fmt.Errorf("backup %s does not contain a kv snapshot", id)
		}
	}

	if opts.CreatePreRestoreBackup {
		pre, err := m.CreateBackup(ctx, TriggerPreRestore, "automatic safety backup before restoring "+id)
		if err != nil {
			return nil, fmt.Errorf("pre-restore backup failed: %w", err)
		}
		result.PreRestoreBackup = pre.ID
	}

	restoreErr := m.extractAndRestore(ctx, b, opts, result)
	result.Duration = time.Since(start)

	m.auditRun(ctx, audit.EventTypeDataRestore, id, restoreErr)

	if restoreErr != nil {
		return result, fmt.Errorf("restore from %s failed: %w", id, restoreErr)
	}

	m.logger.Info().
		Str("backup_id", id).
		Bool("database", result.DatabaseRestored).
		Bool("kv", result.KVRestored).
		Int("reports", result.ReportsRestored).
		Dur("duration", result.Duration).
		Msg("Restore completed")
	return result, nil
}

func (m *Manager) extractAndRestore(ctx context.Context, b *Backup, opts RestoreOptions, result *RestoreResult) error {
	tr, cleanup, err := openArchive(b.FilePath)
	if err != nil {
		return err
	}
	defer cleanup()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.ToSlash(header.Name)
		switch {
		case opts.RestoreDatabase && name == archiveDBPath:
			if err := m.restoreFile(tr, m.db.GetDatabasePath(), header.Size); err != nil {
				return fmt.Errorf("database restore failed: %w", err)
			}
			// A stale WAL would replay old writes over the restored file.
			if err := os.Remove(m.db.GetDatabasePath() + ".wal"); err != nil && !os.IsNotExist(err) {
				result.Warnings = append(result.Warnings, "failed to remove stale WAL: "+err.Error())
			}
			result.DatabaseRestored = true
			result.RestartRequired = true

		case opts.RestoreDatabase && name == archiveDBPath+".wal":
			if err := m.restoreFile(tr, m.db.GetDatabasePath()+".wal", header.Size); err != nil {
				return fmt.Errorf("wal restore failed: %w", err)
			}

		case opts.RestoreKV && name == archiveKVPath:
			if m.kv == nil {
				result.Warnings = append(result.Warnings, "kv snapshot present but no kv store attached")
				continue
			}
			if err := m.kv.Load(io.LimitReader(tr, maxExtractSize), kvRestorePendingWrites); err != nil {
				return fmt.Errorf("kv restore failed: %w", err)
			}
			result.KVRestored = true

		case opts.RestoreReports && strings.HasPrefix(name, archiveFilesDir+"/"):
			if m.reportsDir == "" {
				continue
			}
			dest, err := safeJoin(m.reportsDir, strings.TrimPrefix(name, archiveFilesDir+"/"))
			if err != nil {
				result.Warnings = append(result.Warnings, err.Error())
				continue
			}
			if err := m.restoreFile(tr, dest, header.Size); err != nil {
				return fmt.Errorf("report restore failed: %w", err)
			}
			result.ReportsRestored++
		}
	}

	return nil
}

func (m *Manager) restoreFile(r io.Reader, destPath string, size int64) error {
	if size > maxExtractSize {
		return fmt.Errorf("entry exceeds extraction limit (%d bytes)", size)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return err
	}

	// Write beside the target and rename, so a failed extraction never
	// leaves a truncated file in place.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".restore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Best effort cleanup

	if _, err := io.Copy(tmp, io.LimitReader(r, size)); err != nil {
		tmp.Close() //nolint:errcheck // Best effort cleanup
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destPath)
}

// readManifest scans the archive for manifest.json.
func (m *Manager) readManifest(archivePath string) (*Backup, error) {
	tr, cleanup, err := openArchive(archivePath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("no %s in archive", manifestName)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		if filepath.ToSlash(header.Name) != manifestName {
			continue
		}

		data, err := io.ReadAll(io.LimitReader(tr, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		manifest := &Backup{}
		if err := json.Unmarshal(data, manifest); err != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
		return manifest, nil
	}
}

//nolint:gosec // G304: archivePath comes from our own metadata
func openArchive(archivePath string) (*tar.Reader, func(), error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		file.Close() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to open compression stream: %w", err)
	}

	cleanup := func() {
		gzReader.Close() //nolint:errcheck // Best effort cleanup
		file.Close()     //nolint:errcheck // Best effort cleanup
	}
	return tar.NewReader(gzReader), cleanup, nil
}

// safeJoin joins rel under base, rejecting traversal outside base.
func safeJoin(base, rel string) (string, error) {
	dest := filepath.Join(base, filepath.FromSlash(rel))
	cleanBase := filepath.Clean(base) + string(os.PathSeparator)
	if !strings.HasPrefix(dest, cleanBase) {
		return "", fmt.Errorf("archive entry escapes destination: %s", rel)
	}
	return dest, nil
}
