// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package models

import "time"

// ForensicEventType identifies a session-lifecycle or anomaly event.
type ForensicEventType string

const (
	ForensicLoginSuccess     ForensicEventType = "login_success"
	ForensicLoginFailure     ForensicEventType = "login_failure"
	ForensicLogout           ForensicEventType = "logout"
	ForensicSessionRevoked   ForensicEventType = "session_revoked"
	ForensicSessionExpired   ForensicEventType = "session_expired"
	ForensicIPChanged        ForensicEventType = "ip_changed"
	ForensicUserAgentChanged ForensicEventType = "user_agent_changed"
	ForensicRateViolation    ForensicEventType = "rate_violation"
	ForensicLockout          ForensicEventType = "lockout"
)

// ForensicEvent is one row in the session forensics trail. Events are
// written asynchronously and queried through the admin and monitoring APIs.
type ForensicEvent struct {
	ID            string            `json:"id"`
	TenantID      string            `json:"tenant_id"`
	SessionID     string            `json:"session_id,omitempty"`
	UserID        string            `json:"user_id,omitempty"`
	Username      string            `json:"username,omitempty"`
	Event         ForensicEventType `json:"event"`
	IP            string            `json:"ip"`
	UserAgent     string            `json:"user_agent,omitempty"`
	Detail        string            `json:"detail,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// ForensicFilter narrows forensic event queries.
type ForensicFilter struct {
	UserID string
	Event  ForensicEventType
	IP     string
	From   time.Time
	To     time.Time
	Page   int
	Limit  int
}

// ForensicSummary aggregates event counts for the monitoring API.
type ForensicSummary struct {
	Window        string                    `json:"window"`
	Total         int                       `json:"total"`
	ByEvent       map[ForensicEventType]int `json:"by_event"`
	DistinctIPs   int                       `json:"distinct_ips"`
	DistinctUsers int                       `json:"distinct_users"`
}
