// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package audit records security-relevant events for compliance review.
//
// Every authentication attempt, authorization denial, administrative
// mutation, and configuration change flows through the Logger, which
// buffers events and persists them asynchronously to a Store. The
// DuckDB-backed store shares the main database file, so audit rows are
// covered by the same backup and checkpoint cycle as tenant data.
//
// Events carry the tenant, actor, source address, and the correlation ID
// of the originating request, which ties an audit row to its log lines
// and to the error envelope the client saw.
package audit
