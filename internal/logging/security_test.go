// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestSanitizeToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"short", "***"},
		{"exactlytwelv", "***"},
		{"cust_mon_abc123_secretsecret", "cust...cret"},
		{"1234567890123456", "1234...3456"},
	}

	for _, tt := range tests {
		result := SanitizeToken(tt.input)
		if result != tt.expected {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestSanitizeUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"jo", "***"},
		{"johndoe", "jo***"},
	}

	for _, tt := range tests {
		result := SanitizeUsername(tt.input)
		if result != tt.expected {
			t.Errorf("SanitizeUsername(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestSanitizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"noatsign", "***"},
		{"a@x.com", "***@x.com"},
		{"john.doe@example.com", "jo***@example.com"},
	}

	for _, tt := range tests {
		result := SanitizeEmail(tt.input)
		if result != tt.expected {
			t.Errorf("SanitizeEmail(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestSanitizeErrorRedactsCredentials(t *testing.T) {
	t.Parallel()

	if got := SanitizeError("invalid password for user"); got != "authentication error" {
		t.Errorf("expected generic message, got %q", got)
	}
	if got := SanitizeError("connection refused"); got != "connection refused" {
		t.Errorf("expected passthrough, got %q", got)
	}
}

func TestSecurityLoggerSanitizesEvent(t *testing.T) {
	var buf bytes.Buffer

	sl := NewSecurityLoggerWithLogger(NewTestLogger(&buf))
	sl.LogLoginFailure("acme", "johndoe", "203.0.113.7", "curl/8.0", "invalid password")

	output := buf.String()
	if strings.Contains(output, "johndoe") {
		t.Errorf("expected username to be masked, got: %s", output)
	}
	if !strings.Contains(output, "jo***") {
		t.Errorf("expected masked username, got: %s", output)
	}
	if strings.Contains(output, "invalid password") {
		t.Errorf("expected error to be sanitized, got: %s", output)
	}
	if !strings.Contains(output, `"tenant_id":"acme"`) {
		t.Errorf("expected tenant_id field, got: %s", output)
	}
}

func TestSecurityLoggerIPBlocked(t *testing.T) {
	var buf bytes.Buffer

	sl := NewSecurityLoggerWithLogger(NewTestLogger(&buf))
	sl.LogIPBlocked("203.0.113.7", "auth", 3, "8m0s")

	output := buf.String()
	if !strings.Contains(output, `"event":"ip_blocked"`) {
		t.Errorf("expected ip_blocked event, got: %s", output)
	}
	if !strings.Contains(output, `"violations":"3"`) {
		t.Errorf("expected violations field, got: %s", output)
	}
}
