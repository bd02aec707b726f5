// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/custodia/internal/logging"
)

func TestRequestIDGenerated(t *testing.T) {
	t.Parallel()

	var capturedID string
	handler := RequestID(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetRequestID(r.Context())
		if logging.RequestIDFromContext(r.Context()) != capturedID {
			t.Error("expected logging context to carry the request ID")
		}
		if logging.CorrelationIDFromContext(r.Context()) == "" {
			t.Error("expected a correlation ID to be assigned")
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/health", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if capturedID == "" {
		t.Fatal("expected request ID to be generated")
	}
	if rec.Header().Get("X-Request-ID") != capturedID {
		t.Error("expected X-Request-ID response header to match context ID")
	}
}

func TestRequestIDHonorsUpstream(t *testing.T) {
	t.Parallel()

	handler := RequestID(func(w http.ResponseWriter, r *http.Request) {
		if got := GetRequestID(r.Context()); got != "upstream-id" {
			t.Errorf("expected upstream request ID, got %q", got)
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/health", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	handler(httptest.NewRecorder(), req)
}

func TestTenantResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"explicit tenant", "acme", "acme"},
		{"missing header", "", "default"},
		{"invalid slug", "../etc/passwd", "default"},
		{"uppercase rejected", "ACME", "default"},
		{"valid with dash", "acme-west", "acme-west"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mw := Tenant("X-Custodia-Tenant", "default")
			handler := mw(func(w http.ResponseWriter, r *http.Request) {
				if got := GetTenantID(r.Context()); got != tt.expected {
					t.Errorf("expected tenant %q, got %q", tt.expected, got)
				}
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v2/people", nil)
			if tt.header != "" {
				req.Header.Set("X-Custodia-Tenant", tt.header)
			}
			handler(httptest.NewRecorder(), req)
		})
	}
}

func TestCompression(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("attendance ", 200)
	handler := Compression(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/attendance", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatal("expected gzip content encoding")
	}

	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("failed to create gzip reader: %v", err)
	}
	decompressed, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("failed to decompress: %v", err)
	}
	if string(decompressed) != payload {
		t.Error("expected decompressed body to match payload")
	}
}

func TestCompressionSkippedWithoutAcceptEncoding(t *testing.T) {
	t.Parallel()

	handler := Compression(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/health", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Header().Get("Content-Encoding") == "gzip" {
		t.Error("expected no compression without Accept-Encoding")
	}
	if rec.Body.String() != "plain" {
		t.Errorf("expected plain body, got %q", rec.Body.String())
	}
}
