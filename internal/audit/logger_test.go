// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/custodia/internal/logging"
)

func TestLogger_Log(t *testing.T) {
	store := NewMemoryStore(100)
	config := &Config{
		Enabled:     true,
		LogLevel:    SeverityInfo,
		LogToStdout: false,
		BufferSize:  10,
	}
	logger := NewLogger(store, config)
	defer logger.Close()

	event := &Event{
		TenantID:    "acme",
		Type:        EventTypeAuthSuccess,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       Actor{ID: "user1", Type: "user", Name: "jdoe"},
		Source:      Source{IPAddress: "192.168.1.1"},
		Action:      "login",
		Description: "User logged in successfully",
	}

	logger.Log(event)

	// Wait for async write
	time.Sleep(100 * time.Millisecond)

	if store.Len() != 1 {
		t.Errorf("expected 1 event in store, got %d", store.Len())
	}

	ctx := context.Background()
	events, err := store.Query(ctx, QueryFilter{Limit: 10})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	if events[0].Type != EventTypeAuthSuccess {
		t.Errorf("expected type %s, got %s", EventTypeAuthSuccess, events[0].Type)
	}
	if events[0].Actor.ID != "user1" {
		t.Errorf("expected actor ID user1, got %s", events[0].Actor.ID)
	}
	if events[0].ID == "" || events[0].Timestamp.IsZero() {
		t.Error("expected generated ID and timestamp")
	}
}

func TestLogger_Disabled(t *testing.T) {
	store := NewMemoryStore(100)
	config := &Config{
		Enabled:    false,
		BufferSize: 10,
	}
	logger := NewLogger(store, config)
	defer logger.Close()

	logger.Log(&Event{
		Type:     EventTypeAuthSuccess,
		Severity: SeverityInfo,
	})
	time.Sleep(100 * time.Millisecond)

	if store.Len() != 0 {
		t.Error("disabled logger should not log events")
	}
}

func TestLogger_SeverityFiltering(t *testing.T) {
	store := NewMemoryStore(100)
	config := &Config{
		Enabled:      true,
		LogLevel:     SeverityWarning, // Only warning and above
		IncludeDebug: false,
		BufferSize:   10,
	}
	logger := NewLogger(store, config)
	defer logger.Close()

	logger.Log(&Event{Type: EventTypeAuthSuccess, Severity: SeverityInfo})
	logger.Log(&Event{Type: EventTypeAuthFailure, Severity: SeverityWarning})
	logger.Log(&Event{Type: EventTypeAuthLockout, Severity: SeverityCritical})

	time.Sleep(100 * time.Millisecond)

	if store.Len() != 2 {
		t.Errorf("expected 2 events (warning + critical), got %d", store.Len())
	}
}

func TestLogger_ContextFill(t *testing.T) {
	store := NewMemoryStore(100)
	logger := NewLogger(store, &Config{
		Enabled:    true,
		LogLevel:   SeverityInfo,
		BufferSize: 10,
	})
	defer logger.Close()

	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	ctx = logging.ContextWithRequestID(ctx, "req-1")
	ctx = logging.ContextWithTenantID(ctx, "acme")

	logger.LogAuthFailure(ctx, "user1", "jdoe", Source{IPAddress: "10.0.0.1"}, "invalid credentials")
	time.Sleep(100 * time.Millisecond)

	events, err := store.Query(context.Background(), QueryFilter{Limit: 10})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.TenantID != "acme" || got.CorrelationID != "corr-1" || got.RequestID != "req-1" {
		t.Errorf("expected context identifiers on event, got %+v", got)
	}
	if got.Outcome != OutcomeFailure || got.Severity != SeverityWarning {
		t.Errorf("unexpected failure event shape: %+v", got)
	}
}

func TestMemoryStore_TenantFilter(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()

	events := []Event{
		{ID: "1", TenantID: "acme", Type: EventTypeAuthSuccess, Timestamp: time.Now()},
		{ID: "2", TenantID: "acme", Type: EventTypeAuthzDenied, Timestamp: time.Now()},
		{ID: "3", TenantID: "globex", Type: EventTypeAuthSuccess, Timestamp: time.Now()},
	}
	for i := range events {
		if err := store.Save(ctx, &events[i]); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	count, err := store.Count(ctx, QueryFilter{TenantID: "acme"})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 acme events, got %d", count)
	}

	got, err := store.Query(ctx, QueryFilter{TenantID: "globex", Limit: 10})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "3" {
		t.Errorf("expected only globex event, got %+v", got)
	}
}

func TestMemoryStore_Retention(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()

	old := Event{ID: "old", Timestamp: time.Now().Add(-91 * 24 * time.Hour)}
	fresh := Event{ID: "fresh", Timestamp: time.Now()}
	if err := store.Save(ctx, &old); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Save(ctx, &fresh); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	deleted, err := store.Delete(ctx, time.Now().Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted event, got %d", deleted)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 remaining event, got %d", store.Len())
	}
}

func TestCEFExporter(t *testing.T) {
	exporter := NewCEFExporter()

	events := []Event{
		{
			ID:          "1",
			TenantID:    "acme",
			Timestamp:   time.Now(),
			Type:        EventTypeAuthLockout,
			Severity:    SeverityCritical,
			Outcome:     OutcomeSuccess,
			Actor:       Actor{ID: "user1", Type: "user", Name: "jdoe"},
			Source:      Source{IPAddress: "10.0.0.1"},
			Action:      "lockout",
			Description: "Account locked | too many attempts",
		},
	}

	data, err := exporter.Export(events)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	line := string(data)
	if !strings.HasPrefix(line, "CEF:0|Custodia|FacilityManagement|") {
		t.Errorf("unexpected CEF header: %s", line)
	}
	if !strings.Contains(line, "auth.lockout") || !strings.Contains(line, "|10|") {
		t.Errorf("expected lockout type and critical severity: %s", line)
	}
	// Pipes in the description must be escaped.
	if !strings.Contains(line, `Account locked \| too many attempts`) {
		t.Errorf("expected escaped pipe in description: %s", line)
	}
	if !strings.Contains(line, "cs1=acme") {
		t.Errorf("expected tenant extension field: %s", line)
	}
}

func TestMemoryStore_GetStats(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()

	for _, e := range []Event{
		{ID: "1", Type: EventTypeAuthSuccess, Severity: SeverityInfo, Outcome: OutcomeSuccess, Timestamp: time.Now().Add(-time.Hour)},
		{ID: "2", Type: EventTypeAuthFailure, Severity: SeverityWarning, Outcome: OutcomeFailure, Timestamp: time.Now()},
		{ID: "3", Type: EventTypeAuthFailure, Severity: SeverityWarning, Outcome: OutcomeFailure, Timestamp: time.Now()},
	} {
		event := e
		if err := store.Save(ctx, &event); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalEvents != 3 {
		t.Errorf("expected 3 events, got %d", stats.TotalEvents)
	}
	if stats.EventsByType["auth.failure"] != 2 {
		t.Errorf("expected 2 auth.failure, got %d", stats.EventsByType["auth.failure"])
	}
	if stats.OldestEvent == nil || stats.NewestEvent == nil || !stats.OldestEvent.Before(*stats.NewestEvent) {
		t.Error("expected time range populated")
	}
}
