// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/audit"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// ErrInvalidCredentials is returned for unknown users, wrong passwords,
// and disabled accounts alike, so responses don't reveal which it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore defines the user lookups the service needs.
type UserStore interface {
	GetUserByUsername(ctx context.Context, tenantID, username string) (*models.User, error)
	GetUserByID(ctx context.Context, tenantID, id string) (*models.User, error)
}

// ForensicRecorder receives session-lifecycle events. Recording is
// asynchronous and must never block or fail a request.
type ForensicRecorder interface {
	Record(ctx context.Context, event *models.ForensicEvent)
}

// Service orchestrates login, logout, token refresh, and per-request
// authentication.
type Service struct {
	users     UserStore
	sessions  *SessionManager
	tokens    *TokenManager
	lockouts  *LockoutManager
	csrf      *CSRFStore
	auditor   *audit.Logger
	forensics ForensicRecorder
	seclog    *logging.SecurityLogger
}

// NewService creates the auth service. auditor and forensics may be nil
// in tests.
func NewService(users UserStore, sessions *SessionManager, tokens *TokenManager, lockouts *LockoutManager, csrf *CSRFStore, auditor *audit.Logger, forensics ForensicRecorder) *Service {
	return &Service{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		lockouts:  lockouts,
		csrf:      csrf,
		auditor:   auditor,
		forensics: forensics,
		seclog:    logging.NewSecurityLogger(),
	}
}

// userSubject builds the tenant-scoped lockout subject for a username.
func userSubject(tenantID, username string) string {
	return tenantID + ":" + username
}

// Login verifies credentials, opens a session, and issues a token pair
// plus a freshly rotated CSRF token. Failed attempts count toward both
// the per-account and per-IP lockouts.
func (s *Service) Login(ctx context.Context, tenantID string, req *models.LoginRequest, ip, userAgent string) (*models.LoginResponse, error) {
	source := audit.Source{IPAddress: ip, UserAgent: userAgent}
	subject := userSubject(tenantID, req.Username)

	for _, sub := range []string{subject, IPSubject(ip)} {
		if err := s.lockouts.Check(ctx, sub); err != nil {
			if errors.Is(err, ErrAccountLocked) {
				metrics.RecordLogin("locked")
				s.recordForensic(ctx, &models.ForensicEvent{
					TenantID:  tenantID,
					Username:  req.Username,
					Event:     models.ForensicLockout,
					IP:        ip,
					UserAgent: userAgent,
					Detail:    "login attempt while locked out",
				})
			}
			return nil, err
		}
	}

	user, err := s.users.GetUserByUsername(ctx, tenantID, req.Username)
	if err != nil || user == nil || !user.Active || !VerifyPassword(req.Password, user.PasswordHash) {
		return nil, s.failLogin(ctx, tenantID, req.Username, ip, userAgent, source)
	}

	for _, sub := range []string{subject, IPSubject(ip)} {
		if err := s.lockouts.Clear(ctx, sub); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("subject", sub).Msg("Failed to clear lockout counter")
		}
	}

	session, err := s.sessions.Create(ctx, user, ip, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	tokens, err := s.tokens.GeneratePair(user, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	// CSRF token rotates on every login; any previously leaked token for
	// this session is dead.
	csrfToken, err := s.csrf.Issue(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue CSRF token: %w", err)
	}

	metrics.RecordLogin("success")
	s.seclog.LogLoginSuccess(tenantID, user.ID, user.Username, ip, userAgent)
	s.recordForensic(ctx, &models.ForensicEvent{
		TenantID:  tenantID,
		SessionID: session.ID,
		UserID:    user.ID,
		Username:  user.Username,
		Event:     models.ForensicLoginSuccess,
		IP:        ip,
		UserAgent: userAgent,
	})
	if s.auditor != nil {
		actor := audit.ActorFromUser(user.ID, user.Username, []string{string(user.Role)}, "password", session.ID)
		s.auditor.LogAuthSuccess(ctx, actor, source, "password")
	}

	return &models.LoginResponse{
		User:      user,
		Tokens:    tokens,
		SessionID: session.ID,
		CSRFToken: csrfToken,
	}, nil
}

// failLogin records a failed attempt and returns ErrInvalidCredentials.
func (s *Service) failLogin(ctx context.Context, tenantID, username, ip, userAgent string, source audit.Source) error {
	for _, sub := range []string{userSubject(tenantID, username), IPSubject(ip)} {
		if _, err := s.lockouts.RecordFailure(ctx, sub, source); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("subject", sub).Msg("Failed to record login failure")
		}
	}

	metrics.RecordLogin("failure")
	s.seclog.LogLoginFailure(tenantID, username, ip, userAgent, "invalid credentials")
	s.recordForensic(ctx, &models.ForensicEvent{
		TenantID:  tenantID,
		Username:  username,
		Event:     models.ForensicLoginFailure,
		IP:        ip,
		UserAgent: userAgent,
		Detail:    "invalid credentials",
	})
	if s.auditor != nil {
		s.auditor.LogAuthFailure(ctx, "", username, source, "invalid credentials")
	}

	return ErrInvalidCredentials
}

// Authenticate validates an access token against its session and slides
// the idle window. IP and user-agent changes are recorded as forensic
// events but do not fail the request.
func (s *Service) Authenticate(ctx context.Context, accessToken, ip, userAgent string) (*Session, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}
	return s.AuthenticateSession(ctx, claims.SessionID, ip, userAgent)
}

// AuthenticateSession validates a session by ID, the path browser
// clients take with the session cookie. Slides the idle window and
// records IP and user-agent changes like Authenticate.
func (s *Service) AuthenticateSession(ctx context.Context, sessionID, ip, userAgent string) (*Session, error) {
	session, err := s.sessions.Validate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if ip != "" && session.IP != ip {
		s.recordForensic(ctx, &models.ForensicEvent{
			TenantID:  session.TenantID,
			SessionID: session.ID,
			UserID:    session.UserID,
			Username:  session.Username,
			Event:     models.ForensicIPChanged,
			IP:        ip,
			UserAgent: userAgent,
			Detail:    "previous: " + session.IP,
		})
		session.IP = ip
		if err := s.sessions.Update(ctx, session); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to persist session IP change")
		}
	}
	if userAgent != "" && session.UserAgent != userAgent {
		s.recordForensic(ctx, &models.ForensicEvent{
			TenantID:  session.TenantID,
			SessionID: session.ID,
			UserID:    session.UserID,
			Username:  session.Username,
			Event:     models.ForensicUserAgentChanged,
			IP:        ip,
			UserAgent: userAgent,
			Detail:    "previous: " + session.UserAgent,
		})
		session.UserAgent = userAgent
		if err := s.sessions.Update(ctx, session); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to persist session user-agent change")
		}
	}

	return session, nil
}

// Refresh exchanges a valid refresh token for a new pair. The session
// must still be alive; both new tokens stay bound to it.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Validate(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, session.TenantID, session.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.GeneratePair(user, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return &pair, nil
}

// Logout destroys one session and its CSRF token.
func (s *Service) Logout(ctx context.Context, session *Session) error {
	if err := s.sessions.Destroy(ctx, session.ID); err != nil {
		return err
	}
	if err := s.csrf.Delete(ctx, session.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to delete CSRF token on logout")
	}

	s.seclog.LogLogout(session.UserID, session.ID, session.IP)
	s.recordForensic(ctx, &models.ForensicEvent{
		TenantID:  session.TenantID,
		SessionID: session.ID,
		UserID:    session.UserID,
		Username:  session.Username,
		Event:     models.ForensicLogout,
		IP:        session.IP,
	})
	if s.auditor != nil {
		actor := audit.ActorFromUser(session.UserID, session.Username, []string{string(session.Role)}, "session", session.ID)
		s.auditor.LogLogout(ctx, actor, audit.Source{IPAddress: session.IP}, session.ID)
	}
	return nil
}

// LogoutAll destroys every session for the user and returns the count.
func (s *Service) LogoutAll(ctx context.Context, session *Session) (int, error) {
	count, err := s.sessions.DestroyAll(ctx, session.UserID)
	if err != nil {
		return count, err
	}

	s.recordForensic(ctx, &models.ForensicEvent{
		TenantID:  session.TenantID,
		SessionID: session.ID,
		UserID:    session.UserID,
		Username:  session.Username,
		Event:     models.ForensicSessionRevoked,
		IP:        session.IP,
		Detail:    fmt.Sprintf("logout everywhere, %d sessions revoked", count),
	})
	if s.auditor != nil {
		actor := audit.ActorFromUser(session.UserID, session.Username, []string{string(session.Role)}, "session", session.ID)
		s.auditor.LogCtx(ctx, &audit.Event{
			Type:        audit.EventTypeLogoutAll,
			Severity:    audit.SeverityInfo,
			Outcome:     audit.OutcomeSuccess,
			TenantID:    session.TenantID,
			Actor:       actor,
			Source:      audit.Source{IPAddress: session.IP},
			Action:      "logout_all",
			Description: fmt.Sprintf("Revoked %d sessions", count),
		})
	}
	return count, nil
}

// Sessions lists the user's live sessions for the session management UI.
func (s *Service) Sessions(ctx context.Context, userID string) ([]*Session, error) {
	return s.sessions.List(ctx, userID)
}

// RevokeSession destroys a specific session belonging to the user.
func (s *Service) RevokeSession(ctx context.Context, owner *Session, sessionID string) error {
	target, err := s.sessions.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if target.UserID != owner.UserID {
		return ErrSessionNotFound
	}

	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return err
	}
	s.recordForensic(ctx, &models.ForensicEvent{
		TenantID:  target.TenantID,
		SessionID: sessionID,
		UserID:    target.UserID,
		Username:  target.Username,
		Event:     models.ForensicSessionRevoked,
		IP:        owner.IP,
	})
	return nil
}

func (s *Service) recordForensic(ctx context.Context, event *models.ForensicEvent) {
	if s.forensics == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.CorrelationID == "" {
		event.CorrelationID = logging.CorrelationIDFromContext(ctx)
	}
	s.forensics.Record(ctx, event)
}
