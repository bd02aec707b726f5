// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package auth

import (
	"context"

	"github.com/tomtom215/custodia/internal/models"
)

type contextKey string

const (
	sessionContextKey       contextKey = "auth_session"
	monitoringKeyContextKey contextKey = "auth_monitoring_key"
)

// ContextWithSession stores the authenticated session in the context.
func ContextWithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext returns the authenticated session, or nil.
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionContextKey).(*Session)
	return session
}

// ContextWithMonitoringKey stores the validated monitoring key in the context.
func ContextWithMonitoringKey(ctx context.Context, key *models.MonitoringAPIKey) context.Context {
	return context.WithValue(ctx, monitoringKeyContextKey, key)
}

// MonitoringKeyFromContext returns the validated monitoring key, or nil.
func MonitoringKeyFromContext(ctx context.Context) *models.MonitoringAPIKey {
	key, _ := ctx.Value(monitoringKeyContextKey).(*models.MonitoringAPIKey)
	return key
}
