// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/models"
)

// Key prefix for block records in the shared Badger store.
const blockKeyPrefix = "ratelimit_block:"

// ErrNotBlocked is returned when no block record exists for an IP.
var ErrNotBlocked = errors.New("ip not blocked")

// BlockStore persists IP block records in BadgerDB. Records survive
// restarts so an attacker cannot reset their backoff by waiting for a
// redeploy.
type BlockStore struct {
	db *badger.DB
}

// NewBlockStore creates a block store on the shared Badger handle.
func NewBlockStore(db *badger.DB) *BlockStore {
	return &BlockStore{db: db}
}

// Get retrieves the block record for an IP, expired or not. Callers
// check Expired themselves: an expired record still carries the
// BlockCount that drives the next escalation.
func (s *BlockStore) Get(ctx context.Context, ip string) (*models.BlockedIP, error) {
	var block models.BlockedIP

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blockKeyPrefix + ip))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotBlocked
		}
		if err != nil {
			return fmt.Errorf("get block record: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &block)
		})
	})
	if err != nil {
		return nil, err
	}

	return &block, nil
}

// Put stores or replaces the block record for an IP.
func (s *BlockStore) Put(ctx context.Context, block *models.BlockedIP) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(blockKeyPrefix+block.IP), data)
	})
}

// Delete removes the block record for an IP. Returns ErrNotBlocked when
// no record exists, so an admin unblock of an unknown IP maps to 404.
func (s *BlockStore) Delete(ctx context.Context, ip string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(blockKeyPrefix + ip)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotBlocked
		} else if err != nil {
			return fmt.Errorf("get block record: %w", err)
		}
		return txn.Delete(key)
	})
}

// List returns all block records, active and expired.
func (s *BlockStore) List(ctx context.Context) ([]models.BlockedIP, error) {
	var blocks []models.BlockedIP

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(blockKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var block models.BlockedIP
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &block)
			})
			if err != nil {
				continue
			}
			blocks = append(blocks, block)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list block records: %w", err)
	}

	return blocks, nil
}

// CountActive returns the number of blocks still in force at now.
func (s *BlockStore) CountActive(ctx context.Context, now time.Time) (int, error) {
	blocks, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	active := 0
	for i := range blocks {
		if !blocks[i].Expired(now) {
			active++
		}
	}
	return active, nil
}

// PurgeExpired removes blocks that lapsed before the grace cutoff.
// Records are kept for a grace period after expiry so the escalation
// counter survives short-lived blocks.
func (s *BlockStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	blocks, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	purged := 0
	for i := range blocks {
		if !blocks[i].BlockedUntil.Before(cutoff) {
			continue
		}
		if err := s.Delete(ctx, blocks[i].IP); err != nil {
			if errors.Is(err, ErrNotBlocked) {
				continue
			}
			return purged, err
		}
		purged++
	}
	return purged, nil
}
