// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestGenerateCorrelationID(t *testing.T) {
	t.Parallel()

	id := GenerateCorrelationID()
	if len(id) != 8 {
		t.Errorf("expected 8-character correlation ID, got %d characters: %s", len(id), id)
	}

	other := GenerateCorrelationID()
	if id == other {
		t.Error("expected unique correlation IDs")
	}
}

func TestGenerateRequestID(t *testing.T) {
	t.Parallel()

	id := GenerateRequestID()
	if len(id) != 36 {
		t.Errorf("expected UUID request ID, got: %s", id)
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := CorrelationIDFromContext(ctx); got != "" {
		t.Errorf("expected empty correlation ID from bare context, got %q", got)
	}

	ctx = ContextWithCorrelationID(ctx, "abcd1234")
	if got := CorrelationIDFromContext(ctx); got != "abcd1234" {
		t.Errorf("expected 'abcd1234', got %q", got)
	}
}

func TestContextWithNewCorrelationID(t *testing.T) {
	t.Parallel()

	ctx := ContextWithNewCorrelationID(context.Background())
	if CorrelationIDFromContext(ctx) == "" {
		t.Error("expected correlation ID to be set")
	}
}

func TestTenantIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := ContextWithTenantID(context.Background(), "acme")
	if got := TenantIDFromContext(ctx); got != "acme" {
		t.Errorf("expected 'acme', got %q", got)
	}
}

func TestCtxAddsFields(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
	})

	ctx := context.Background()
	ctx = ContextWithCorrelationID(ctx, "corr1234")
	ctx = ContextWithRequestID(ctx, "req-uuid")
	ctx = ContextWithTenantID(ctx, "acme")

	Ctx(ctx).Info().Msg("checked in")

	output := buf.String()
	for _, want := range []string{
		`"correlation_id":"corr1234"`,
		`"request_id":"req-uuid"`,
		`"tenant_id":"acme"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %s, got: %s", want, output)
		}
	}
}

func TestCtxWithEmptyContext(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
	})

	Ctx(context.Background()).Info().Msg("no ids")

	output := buf.String()
	if strings.Contains(output, "correlation_id") {
		t.Errorf("expected no correlation_id field, got: %s", output)
	}
}
