// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package api wires the HTTP surface: a Chi router mounting every
// /api/v2 endpoint behind the shared middleware stack (request IDs,
// tenant resolution, rate-limit classes with IP blocking, session and
// monitoring-key authentication, CSRF, RBAC).
//
// Every JSON endpoint answers with the models.APIResponse envelope so
// clients handle success, errors, and correlation IDs uniformly.
package api
