// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package models

import "time"

// User holds login credentials for a workforce member. A user may be linked
// to a Person row via PersonID; service accounts have no person.
type User struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // bcrypt, never serialized
	Role         PersonRole `json:"role"`
	PersonID     string     `json:"person_id,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// LoginRequest is the payload for POST /api/v2/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required,min=1,max=200"`
}

// TokenPair is issued on login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"` // access token expiry
}

// RefreshRequest is the payload for POST /api/v2/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse is returned on successful login. CSRFToken is the rotated
// double-submit token the client must echo on state-changing requests.
type LoginResponse struct {
	User      *User     `json:"user"`
	Tokens    TokenPair `json:"tokens"`
	SessionID string    `json:"session_id"`
	CSRFToken string    `json:"csrf_token"`
}
