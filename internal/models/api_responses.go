// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package models provides data structures shared across Custodia's stores,
// handlers, and task pipeline.
package models

import (
	"time"
)

// APIResponse is the standardized envelope returned by every JSON endpoint.
//
// Example successful response:
//
//	{
//	  "success": true,
//	  "data": {"total": 100, "results": [...]},
//	  "meta": {
//	    "correlation_id": "a1b2c3d4",
//	    "timestamp": "2026-08-24T12:00:00Z"
//	  }
//	}
//
// Example error response:
//
//	{
//	  "success": false,
//	  "error": {
//	    "code": "VALIDATION_ERROR",
//	    "message": "Invalid ticket transition",
//	    "details": {"from": "CLOSED", "to": "ASSIGNED"}
//	  },
//	  "meta": {"correlation_id": "a1b2c3d4", "timestamp": "2026-08-24T12:00:00Z"}
//	}
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    Meta        `json:"meta"`
}

// Meta carries per-response observability fields. CorrelationID mirrors the
// request's X-Request-ID (or a generated ID) so a client-reported failure can
// be matched to server logs without exposing internals.
type Meta struct {
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// APIError represents structured error details. Message is always safe to
// show to end users; internal detail stays in logs keyed by correlation ID.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Machine-readable error codes used across all endpoints.
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeAuthentication = "AUTHENTICATION_ERROR"
	ErrCodeAuthorization  = "AUTHORIZATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeRateLimited    = "RATE_LIMIT_EXCEEDED"
	ErrCodeLocked         = "ACCOUNT_LOCKED"
	ErrCodeCSRF           = "CSRF_ERROR"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// ListMeta describes pagination state for list responses.
type ListMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// ListResult wraps a page of results with its pagination state.
type ListResult struct {
	Results interface{} `json:"results"`
	ListMeta
}
