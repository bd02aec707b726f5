// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package tasks implements the asynchronous task pipeline: six priority
// queues (critical, high_priority, email, reports, external_api,
// maintenance) carried over NATS JetStream with a Watermill router.
//
// The broker runs embedded by default, so a single-instance deployment
// needs no external infrastructure. Failed tasks retry with exponential
// backoff; exhausted tasks land on the poison topic where the poison log
// keeps them inspectable through the monitoring API. Outbound work on
// the external_api queue passes through a circuit breaker and a rate
// limiter before reaching third-party services.
package tasks
