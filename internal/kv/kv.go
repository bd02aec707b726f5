// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package kv opens the shared Badger store holding volatile security
// state: sessions, CSRF tokens, lockout counters, and rate-limit blocks.
// One Badger instance is opened at startup and handed to the stores that
// need it; key prefixes keep their namespaces apart.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/custodia/internal/config"
)

// Open opens the Badger store described by cfg. InMemory mode is used by
// tests and leaves nothing on disk.
func Open(cfg *config.KVConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create kv directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger kv store: %w", err)
	}
	return db, nil
}

// StartGCRoutine runs periodic value-log garbage collection until the
// context is cancelled. No-op for in-memory stores.
func StartGCRoutine(ctx context.Context, db *badger.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Rerun until Badger reports nothing left to collect.
				for {
					err := db.RunValueLogGC(0.5)
					if err != nil {
						if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
							return
						}
						break
					}
				}
			}
		}
	}()
}
