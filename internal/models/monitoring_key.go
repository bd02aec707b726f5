// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Monitoring API keys grant external monitoring systems scoped, revocable
// access to /api/v2/monitoring without a browser session.
package models

import "time"

// KeyScope represents a permission scope for a monitoring API key.
type KeyScope string

const (
	ScopeMetricsRead   KeyScope = "metrics:read"
	ScopeHealthRead    KeyScope = "health:read"
	ScopeForensicsRead KeyScope = "forensics:read"
	ScopeQueuesRead    KeyScope = "queues:read"
)

// AllKeyScopes returns all available monitoring key scopes.
func AllKeyScopes() []KeyScope {
	return []KeyScope{
		ScopeMetricsRead,
		ScopeHealthRead,
		ScopeForensicsRead,
		ScopeQueuesRead,
	}
}

// IsValidKeyScope checks if a scope is valid.
func IsValidKeyScope(scope KeyScope) bool {
	for _, s := range AllKeyScopes() {
		if s == scope {
			return true
		}
	}
	return false
}

// MonitoringAPIKey represents an opaque key for monitoring system access.
//
// Keys look like cust_mon_<base64-id>_<random-secret>. Only the bcrypt hash
// of the secret is stored; KeyPrefix keeps the first characters so operators
// can tell keys apart in listings.
type MonitoringAPIKey struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	KeyPrefix string `json:"key_prefix"` // first 12 chars for identification
	KeyHash   string `json:"-"`          // bcrypt hash, never exposed in JSON

	Scopes []KeyScope `json:"scopes"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP string     `json:"last_used_ip,omitempty"`
	UseCount   int        `json:"use_count"`

	IPAllowlist []string `json:"ip_allowlist,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`

	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokedBy    string     `json:"revoked_by,omitempty"`
	RevokeReason string     `json:"revoke_reason,omitempty"`
}

// IsExpired checks if the key has expired.
func (k *MonitoringAPIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*k.ExpiresAt)
}

// IsRevoked checks if the key has been revoked.
func (k *MonitoringAPIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// IsActive checks if the key is active (not expired, not revoked).
func (k *MonitoringAPIKey) IsActive() bool {
	return !k.IsExpired() && !k.IsRevoked()
}

// HasScope checks if the key has a specific scope.
func (k *MonitoringAPIKey) HasScope(scope KeyScope) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// IsIPAllowed checks if an IP address is allowed for this key.
// Returns true if no allowlist is configured (all IPs allowed).
func (k *MonitoringAPIKey) IsIPAllowed(ip string) bool {
	if len(k.IPAllowlist) == 0 {
		return true
	}
	for _, allowed := range k.IPAllowlist {
		if allowed == ip {
			return true
		}
	}
	return false
}

// CreateMonitoringKeyRequest represents a request to create a monitoring key.
type CreateMonitoringKeyRequest struct {
	Name        string     `json:"name" validate:"required,min=1,max=100"`
	Description string     `json:"description,omitempty" validate:"max=500"`
	Scopes      []KeyScope `json:"scopes" validate:"required,min=1,dive"`
	ExpiresIn   *int       `json:"expires_in_days,omitempty" validate:"omitempty,min=1,max=365"`
	IPAllowlist []string   `json:"ip_allowlist,omitempty" validate:"omitempty,dive,ip"`
}

// CreateMonitoringKeyResponse is returned once on creation.
// The plaintext key is never retrievable again.
type CreateMonitoringKeyResponse struct {
	Key *MonitoringAPIKey `json:"key"`
	// PlaintextKey is the full key value - only shown once!
	// Format: cust_mon_<base64-id>_<random-secret>
	PlaintextKey string `json:"plaintext_key"`
}
