// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package auth implements authentication for the facility platform:
// password login with per-account and per-IP lockout, Badger-backed
// sessions with idle and absolute timeouts, JWT access/refresh token
// pairs bound to sessions, CSRF double-submit tokens rotated on login,
// and monitoring API keys for external monitoring systems.
//
// Sessions are the source of truth for revocation: access tokens are
// short-lived JWTs that carry the session ID, and every authenticated
// request re-checks that the session is still alive.
package auth
