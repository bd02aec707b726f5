// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"testing"

	"github.com/tomtom215/custodia/internal/models"
)

func TestJournalRevisionChain(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	original, err := db.CreateJournalEntry(ctx, "acme", "user-1", &models.JournalCreateRequest{
		Site: "berlin-hq",
		Body: "Night shift uneventful.",
		Tags: []string{"shift", "night"},
	})
	if err != nil {
		t.Fatalf("CreateJournalEntry failed: %v", err)
	}
	if original.Revision != 1 || original.ParentID != "" {
		t.Errorf("unexpected original entry: %+v", original)
	}

	rev2, err := db.ReviseJournalEntry(ctx, "acme", original.ID, "user-2", &models.JournalReviseRequest{
		Body: "Night shift uneventful. One false fire alarm at 03:10.",
		Tags: []string{"shift", "night", "alarm"},
	})
	if err != nil {
		t.Fatalf("ReviseJournalEntry failed: %v", err)
	}
	if rev2.Revision != 2 || rev2.ParentID != original.ID {
		t.Errorf("unexpected revision: %+v", rev2)
	}

	// Revising the revision still chains to the root.
	rev3, err := db.ReviseJournalEntry(ctx, "acme", rev2.ID, "user-2", &models.JournalReviseRequest{
		Body: "Final version.",
	})
	if err != nil {
		t.Fatalf("second revision failed: %v", err)
	}
	if rev3.Revision != 3 || rev3.ParentID != original.ID {
		t.Errorf("expected revision 3 chained to root, got %+v", rev3)
	}

	// The original row is untouched.
	got, err := db.GetJournalEntry(ctx, "acme", original.ID)
	if err != nil {
		t.Fatalf("GetJournalEntry failed: %v", err)
	}
	if got.Body != "Night shift uneventful." || got.Revision != 1 {
		t.Errorf("expected immutable original, got %+v", got)
	}
	if len(got.Tags) != 2 {
		t.Errorf("expected tags preserved, got %v", got.Tags)
	}
}

func TestListJournalEntriesByTag(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entries := []models.JournalCreateRequest{
		{Site: "berlin-hq", Body: "Generator test passed.", Tags: []string{"maintenance"}},
		{Site: "berlin-hq", Body: "Visitor badge 14 lost.", Tags: []string{"security"}},
		{Site: "munich-depot", Body: "Forklift serviced.", Tags: []string{"maintenance"}},
	}
	for i := range entries {
		if _, err := db.CreateJournalEntry(ctx, "acme", "user-1", &entries[i]); err != nil {
			t.Fatalf("CreateJournalEntry failed: %v", err)
		}
	}

	got, total, err := db.ListJournalEntries(ctx, "acme", models.JournalFilter{Tag: "maintenance"})
	if err != nil {
		t.Fatalf("ListJournalEntries failed: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Errorf("expected 2 maintenance entries, got %d", total)
	}

	got, total, err = db.ListJournalEntries(ctx, "acme", models.JournalFilter{Site: "munich-depot"})
	if err != nil {
		t.Fatalf("ListJournalEntries by site failed: %v", err)
	}
	if total != 1 || got[0].Body != "Forklift serviced." {
		t.Errorf("unexpected site filter result: total=%d", total)
	}
}
