// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package backup creates and restores point-in-time archives of the
// Custodia data stores.
//
// A backup is a single tar.gz archive containing the DuckDB database
// file (copied after a WAL checkpoint so the copy is self-contained),
// a Badger snapshot of the key-value store, the generated report files,
// and a manifest.json describing what the archive holds. Archive
// integrity is tracked with a SHA-256 checksum recorded in the
// manager's metadata store.
//
// Retention is by count and age: the manager keeps at most N archives
// and none older than the configured maximum, never deleting the most
// recent successful backup. The Scheduler runs backups and retention on
// an interval under the supervision tree.
//
// Restore is selective. RestoreOptions chooses between the database,
// the key-value store, and report files; ValidateOnly checks the
// archive without touching anything. The server must be restarted after
// a database restore since open connections still point at the old
// file.
package backup
