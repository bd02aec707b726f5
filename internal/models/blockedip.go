// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package models

import "time"

// BlockedIP records an IP address blocked after repeated rate-limit
// violations. BlockCount drives the exponential backoff: the block imposed
// after the Nth escalation lasts base * 2^(N-1), capped by configuration.
type BlockedIP struct {
	IP             string    `json:"ip"`
	Reason         string    `json:"reason"`
	Scope          string    `json:"scope"` // endpoint class that triggered the block
	ViolationCount int       `json:"violation_count"`
	BlockCount     int       `json:"block_count"`
	BlockedUntil   time.Time `json:"blocked_until"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Expired reports whether the block has lapsed.
func (b *BlockedIP) Expired(now time.Time) bool {
	return now.After(b.BlockedUntil)
}
