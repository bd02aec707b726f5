// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/custodia/internal/models"
)

func TestForensicEventQueryAndSummary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	now := time.Now()
	events := []models.ForensicEvent{
		{TenantID: "acme", UserID: "u1", Username: "jdoe", Event: models.ForensicLoginSuccess, IP: "10.0.0.1", Timestamp: now.Add(-time.Minute)},
		{TenantID: "acme", UserID: "u1", Username: "jdoe", Event: models.ForensicLoginFailure, IP: "10.0.0.1", Timestamp: now.Add(-2 * time.Minute)},
		{TenantID: "acme", UserID: "u2", Username: "asmith", Event: models.ForensicLoginFailure, IP: "10.0.0.2", Timestamp: now.Add(-3 * time.Minute)},
		{TenantID: "globex", UserID: "u9", Event: models.ForensicLockout, IP: "10.9.9.9", Timestamp: now},
	}
	for i := range events {
		if err := db.InsertForensicEvent(ctx, &events[i]); err != nil {
			t.Fatalf("InsertForensicEvent failed: %v", err)
		}
	}

	got, total, err := db.QueryForensicEvents(ctx, "acme", models.ForensicFilter{
		Event: models.ForensicLoginFailure,
	})
	if err != nil {
		t.Fatalf("QueryForensicEvents failed: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Errorf("expected 2 login failures, got %d", total)
	}
	// Newest first.
	if got[0].UserID != "u1" {
		t.Errorf("expected newest event first, got %+v", got[0])
	}

	_, total, err = db.QueryForensicEvents(ctx, "acme", models.ForensicFilter{IP: "10.0.0.2"})
	if err != nil {
		t.Fatalf("QueryForensicEvents by IP failed: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 event from 10.0.0.2, got %d", total)
	}

	summary, err := db.SummarizeForensicEvents(ctx, "acme", time.Hour)
	if err != nil {
		t.Fatalf("SummarizeForensicEvents failed: %v", err)
	}
	if summary.Total != 3 {
		t.Errorf("expected 3 events in summary, got %d", summary.Total)
	}
	if summary.ByEvent[models.ForensicLoginFailure] != 2 {
		t.Errorf("expected 2 failures in summary, got %d", summary.ByEvent[models.ForensicLoginFailure])
	}
	if summary.DistinctIPs != 2 || summary.DistinctUsers != 2 {
		t.Errorf("unexpected distinct counts: %+v", summary)
	}
}

func TestDeleteForensicEventsRetention(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	old := models.ForensicEvent{
		TenantID:  "acme",
		Event:     models.ForensicSessionExpired,
		IP:        "10.0.0.1",
		Timestamp: time.Now().Add(-91 * 24 * time.Hour),
	}
	fresh := models.ForensicEvent{
		TenantID:  "acme",
		Event:     models.ForensicLoginSuccess,
		IP:        "10.0.0.1",
		Timestamp: time.Now(),
	}
	if err := db.InsertForensicEvent(ctx, &old); err != nil {
		t.Fatalf("InsertForensicEvent failed: %v", err)
	}
	if err := db.InsertForensicEvent(ctx, &fresh); err != nil {
		t.Fatalf("InsertForensicEvent failed: %v", err)
	}

	deleted, err := db.DeleteForensicEvents(ctx, time.Now().Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteForensicEvents failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 pruned event, got %d", deleted)
	}

	_, total, err := db.QueryForensicEvents(ctx, "acme", models.ForensicFilter{})
	if err != nil {
		t.Fatalf("QueryForensicEvents failed: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 remaining event, got %d", total)
	}
}
