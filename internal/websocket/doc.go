// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package websocket pushes live facility events to connected browsers.
//
// The Hub owns the set of clients and fans messages out to them; each
// client is pinned to the tenant it authenticated under and only
// receives that tenant's events (broadcasts with an empty tenant reach
// everyone, used for operational notices). Ticket, attendance, and
// report-ready events are published by the API layer after the
// database write commits, so a delivered event always reflects
// persisted state.
//
// The Hub runs as a suture service: Serve blocks until the context is
// canceled and closes every client on the way out. Slow consumers are
// dropped rather than allowed to stall the broadcast loop.
package websocket
