// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/kv"
	"github.com/tomtom215/custodia/internal/models"
)

func TestBlockStoreRoundTrip(t *testing.T) {
	db, err := kv.Open(&config.KVConfig{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open kv store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close kv store: %v", err)
		}
	})

	store := NewBlockStore(db)
	ctx := context.Background()

	if _, err := store.Get(ctx, "10.0.0.1"); !errors.Is(err, ErrNotBlocked) {
		t.Fatalf("expected ErrNotBlocked for unknown IP, got %v", err)
	}

	now := time.Now().Truncate(time.Millisecond)
	block := &models.BlockedIP{
		IP:             "10.0.0.1",
		Reason:         "repeated rate limit violations",
		Scope:          ScopeLogin,
		ViolationCount: 12,
		BlockCount:     3,
		BlockedUntil:   now.Add(time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.Put(ctx, block); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.BlockCount != 3 || got.Scope != ScopeLogin || !got.BlockedUntil.Equal(block.BlockedUntil) {
		t.Errorf("unexpected round trip: %+v", got)
	}

	active, err := store.CountActive(ctx, now)
	if err != nil {
		t.Fatalf("CountActive failed: %v", err)
	}
	if active != 1 {
		t.Errorf("expected 1 active block, got %d", active)
	}

	if err := store.Delete(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "10.0.0.1"); !errors.Is(err, ErrNotBlocked) {
		t.Errorf("expected ErrNotBlocked on double delete, got %v", err)
	}
}
