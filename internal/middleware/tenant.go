// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/tomtom215/custodia/internal/logging"
)

const TenantIDKey contextKey = "tenant_id"

// tenantIDPattern constrains tenant identifiers to a safe slug form.
// Anything else falls back to the default tenant rather than erroring,
// so a malformed header cannot probe tenant existence.
var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Tenant resolves the request's tenant from the configured header and
// injects it into the request context and the logging context. Stores
// read the tenant from context; rows never cross tenants.
func Tenant(header, defaultTenant string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tenantID := r.Header.Get(header)
			if tenantID == "" || !tenantIDPattern.MatchString(tenantID) {
				tenantID = defaultTenant
			}

			ctx := context.WithValue(r.Context(), TenantIDKey, tenantID)
			ctx = logging.ContextWithTenantID(ctx, tenantID)

			next(w, r.WithContext(ctx))
		}
	}
}

// GetTenantID extracts the tenant ID from context.
func GetTenantID(ctx context.Context) string {
	if id, ok := ctx.Value(TenantIDKey).(string); ok {
		return id
	}
	return ""
}
