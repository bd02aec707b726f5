// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package database provides the DuckDB persistence layer for Custodia.
//
// One embedded DuckDB file holds all relational data: tenants, users, the
// workforce registry, attendance, helpdesk tickets, site journals, reports,
// monitoring API keys, and the forensic event trail. Volatile security state
// (sessions, CSRF tokens, rate-limit blocks, lockouts) lives in the Badger
// store, not here.
//
// Every domain query is tenant-scoped: stores take the tenant ID as an
// explicit argument and rows never cross tenants. Sensitive person fields
// (phone, bank account) are encrypted transparently on write and decrypted
// on read via the encryption service; rotation re-encrypts stale rows in
// batches.
//
// The connection is tuned at open time (threads, memory cap, insertion
// order) and checkpointed before close so the WAL is flushed to the main
// file between runs.
package database
