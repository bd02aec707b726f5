// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package ratelimit implements two cooperating protection layers.
//
// The first layer is per-endpoint-class request limiting via httprate:
// each class (auth, login, write, default, health, reports) gets its own
// window. A rejected request is also recorded as a violation.
//
// The second layer escalates repeat offenders: once an IP accumulates
// enough violations inside the tracking window it is blocked outright,
// and every subsequent block doubles in duration (base * 2^(n-1), capped).
// Blocks persist in Badger so they survive restarts; the Guard middleware
// rejects blocked IPs before any routing happens. Admin endpoints list
// and lift blocks, and the maintenance queue purges expired ones.
package ratelimit
