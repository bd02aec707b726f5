// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/tomtom215/custodia/internal/models"
)

// Session-related errors
var (
	// ErrSessionNotFound is returned when a session is not found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when trying to access an expired session.
	ErrSessionExpired = errors.New("session expired")
)

// Session represents an authenticated user session.
//
// A session expires when either limit is hit: IdleExpiry slides forward
// on every authenticated request, AbsoluteExpiry is fixed at creation.
type Session struct {
	// ID is the unique session identifier (opaque token).
	ID string `json:"id"`

	// TenantID scopes the session to one tenant.
	TenantID string `json:"tenant_id"`

	// UserID is the authenticated user's unique identifier.
	UserID string `json:"user_id"`

	// Username is the authenticated user's username.
	Username string `json:"username"`

	// Role is the user's workforce role.
	Role models.PersonRole `json:"role"`

	// IP is the client address the session was created from. A change
	// of address on a later request is recorded as a forensic event.
	IP string `json:"ip"`

	// UserAgent captured at login.
	UserAgent string `json:"user_agent"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`

	// LastSeenAt is when the session was last touched.
	LastSeenAt time.Time `json:"last_seen_at"`

	// IdleExpiry is the sliding inactivity deadline.
	IdleExpiry time.Time `json:"idle_expiry"`

	// AbsoluteExpiry is the hard lifetime cap, never extended.
	AbsoluteExpiry time.Time `json:"absolute_expiry"`
}

// IsExpired returns true if either the idle or absolute deadline passed.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.IdleExpiry) || now.After(s.AbsoluteExpiry)
}

// generateSessionID generates a cryptographically secure session ID.
func generateSessionID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// SessionStore defines the interface for session storage backends.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if not found.
	// Returns ErrSessionExpired if the session exists but is expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Update overwrites an existing session.
	// Returns ErrSessionNotFound if not found.
	Update(ctx context.Context, session *Session) error

	// Delete removes a session by ID.
	// Does not return an error if the session doesn't exist.
	Delete(ctx context.Context, id string) error

	// DeleteByUserID removes all sessions for a user.
	// Returns the count of deleted sessions.
	DeleteByUserID(ctx context.Context, userID string) (int, error)

	// GetByUserID returns all live sessions for a user.
	GetByUserID(ctx context.Context, userID string) ([]*Session, error)

	// Touch updates LastSeenAt and slides the idle deadline.
	Touch(ctx context.Context, id string, lastSeen, idleExpiry time.Time) error

	// CleanupExpired removes all expired sessions.
	// Returns the count of deleted sessions.
	CleanupExpired(ctx context.Context) (int, error)

	// Count returns the number of stored sessions, expired included.
	Count(ctx context.Context) (int, error)
}

// SessionManager creates and validates sessions against the configured
// idle and absolute timeouts.
type SessionManager struct {
	store       SessionStore
	idleTimeout time.Duration
	maxLifetime time.Duration
}

// NewSessionManager creates a session manager. idleTimeout is the sliding
// inactivity window, maxLifetime the absolute session cap.
func NewSessionManager(store SessionStore, idleTimeout, maxLifetime time.Duration) *SessionManager {
	return &SessionManager{
		store:       store,
		idleTimeout: idleTimeout,
		maxLifetime: maxLifetime,
	}
}

// Create opens a session for the user.
func (m *SessionManager) Create(ctx context.Context, user *models.User, ip, userAgent string) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:             id,
		TenantID:       user.TenantID,
		UserID:         user.ID,
		Username:       user.Username,
		Role:           user.Role,
		IP:             ip,
		UserAgent:      userAgent,
		CreatedAt:      now,
		LastSeenAt:     now,
		IdleExpiry:     m.clampIdle(now, now.Add(m.idleTimeout)),
		AbsoluteExpiry: now.Add(m.maxLifetime),
	}
	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Validate loads the session and slides its idle deadline.
func (m *SessionManager) Validate(ctx context.Context, id string) (*Session, error) {
	session, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session.LastSeenAt = now
	session.IdleExpiry = clampTime(now.Add(m.idleTimeout), session.AbsoluteExpiry)
	if err := m.store.Touch(ctx, id, session.LastSeenAt, session.IdleExpiry); err != nil {
		return nil, err
	}
	return session, nil
}

// Update persists a modified session (for example after an IP change).
func (m *SessionManager) Update(ctx context.Context, session *Session) error {
	return m.store.Update(ctx, session)
}

// Destroy removes one session.
func (m *SessionManager) Destroy(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// DestroyAll removes every session for the user, returning the count.
func (m *SessionManager) DestroyAll(ctx context.Context, userID string) (int, error) {
	return m.store.DeleteByUserID(ctx, userID)
}

// List returns the user's live sessions.
func (m *SessionManager) List(ctx context.Context, userID string) ([]*Session, error) {
	return m.store.GetByUserID(ctx, userID)
}

// CleanupExpired sweeps expired sessions. Run by the maintenance queue.
func (m *SessionManager) CleanupExpired(ctx context.Context) (int, error) {
	return m.store.CleanupExpired(ctx)
}

func (m *SessionManager) clampIdle(now, idle time.Time) time.Time {
	return clampTime(idle, now.Add(m.maxLifetime))
}

// clampTime caps t at limit so the idle window never outlives the
// absolute deadline.
func clampTime(t, limit time.Time) time.Time {
	if t.After(limit) {
		return limit
	}
	return t
}
