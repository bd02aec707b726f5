// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package cache provides the in-process data structures behind the
// rate limiter and the poison log.
//
// SlidingWindowStore tracks per-key counts over a rolling window with
// fixed-size buckets; the rate limiter uses it to count violations per
// IP before escalating to a block. MinHeap keeps entries ordered by
// timestamp with O(1) key lookup; the poison log uses it to evict the
// oldest entries at capacity and to expire entries past retention.
//
// Everything here is safe for concurrent use and keeps no goroutines
// of its own.
package cache
