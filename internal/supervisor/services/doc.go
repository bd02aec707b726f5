// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package services contains suture.Service adapters for components
// whose own API does not follow the Serve(ctx)/String contract.
//
// Most Custodia services (the task pipeline, the WebSocket hub, the
// backup and maintenance schedulers) implement suture.Service directly
// and are added to the tree as-is. The HTTP server is the exception:
// net/http's blocking ListenAndServe plus explicit Shutdown needs the
// wrapper in this package.
package services
