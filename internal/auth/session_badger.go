// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package auth

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
)

const (
	sessionKeyPrefix     = "session:"
	sessionUserKeyPrefix = "session_user:"
)

// BadgerSessionStore persists sessions in the shared Badger store so they
// survive restarts. A secondary index under sessionUserKeyPrefix supports
// per-user lookups for "log out everywhere".
type BadgerSessionStore struct {
	db *badger.DB
}

// NewBadgerSessionStore creates a Badger-backed session store.
func NewBadgerSessionStore(db *badger.DB) *BadgerSessionStore {
	return &BadgerSessionStore{db: db}
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

func sessionUserKey(userID, sessionID string) []byte {
	return []byte(sessionUserKeyPrefix + userID + ":" + sessionID)
}

// Create stores a new session. The Badger entry carries a TTL at the
// absolute deadline so storage is reclaimed even without a sweep.
func (s *BadgerSessionStore) Create(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		ttl := time.Until(session.AbsoluteExpiry)
		if ttl <= 0 {
			ttl = time.Minute
		}
		entry := badger.NewEntry(sessionKey(session.ID), data).WithTTL(ttl)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		idx := badger.NewEntry(sessionUserKey(session.UserID, session.ID), nil).WithTTL(ttl)
		return txn.SetEntry(idx)
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	s.updateGauge()
	return nil
}

// Get retrieves a session by ID.
func (s *BadgerSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var session Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.IsExpired(time.Now()) {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// Update overwrites an existing session.
func (s *BadgerSessionStore) Update(ctx context.Context, session *Session) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(session.ID)); err != nil {
			return err
		}
		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		ttl := time.Until(session.AbsoluteExpiry)
		if ttl <= 0 {
			ttl = time.Minute
		}
		return txn.SetEntry(badger.NewEntry(sessionKey(session.ID), data).WithTTL(ttl))
	})
	if err == badger.ErrKeyNotFound {
		return ErrSessionNotFound
	}
	return err
}

// Delete removes a session by ID.
func (s *BadgerSessionStore) Delete(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		// Read first so the user index can be removed as well.
		item, err := txn.Get(sessionKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var session Session
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		}); err != nil {
			return err
		}
		if err := txn.Delete(sessionUserKey(session.UserID, id)); err != nil {
			return err
		}
		return txn.Delete(sessionKey(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.updateGauge()
	return nil
}

// DeleteByUserID removes all sessions for a user via the index prefix.
func (s *BadgerSessionStore) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	ids, err := s.sessionIDsForUser(userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		err := s.db.Update(func(txn *badger.Txn) error {
			if err := txn.Delete(sessionKey(id)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}
			return txn.Delete(sessionUserKey(userID, id))
		})
		if err != nil {
			return count, fmt.Errorf("failed to delete session %s: %w", id, err)
		}
		count++
	}

	s.updateGauge()
	return count, nil
}

// GetByUserID returns all live sessions for a user.
func (s *BadgerSessionStore) GetByUserID(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.sessionIDsForUser(userID)
	if err != nil {
		return nil, err
	}

	var sessions []*Session
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err != nil {
			// Expired or already swept entries are skipped, not errors.
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Touch updates LastSeenAt and the idle deadline in place.
func (s *BadgerSessionStore) Touch(ctx context.Context, id string, lastSeen, idleExpiry time.Time) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			return err
		}
		var session Session
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		}); err != nil {
			return err
		}

		session.LastSeenAt = lastSeen
		session.IdleExpiry = idleExpiry

		data, err := json.Marshal(&session)
		if err != nil {
			return err
		}
		ttl := time.Until(session.AbsoluteExpiry)
		if ttl <= 0 {
			ttl = time.Minute
		}
		return txn.SetEntry(badger.NewEntry(sessionKey(id), data).WithTTL(ttl))
	})
	if err == badger.ErrKeyNotFound {
		return ErrSessionNotFound
	}
	return err
}

// CleanupExpired removes sessions past either deadline. Badger TTLs cover
// the absolute deadline; this sweep catches idle-expired sessions.
func (s *BadgerSessionStore) CleanupExpired(ctx context.Context) (int, error) {
	type expired struct {
		id     string
		userID string
	}

	var stale []expired
	now := time.Now()
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var session Session
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			}); err != nil {
				continue
			}
			if session.IsExpired(now) {
				stale = append(stale, expired{id: session.ID, userID: session.UserID})
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}

	count := 0
	for _, e := range stale {
		err := s.db.Update(func(txn *badger.Txn) error {
			if err := txn.Delete(sessionKey(e.id)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}
			return txn.Delete(sessionUserKey(e.userID, e.id))
		})
		if err != nil {
			return count, fmt.Errorf("failed to delete expired session: %w", err)
		}
		count++
	}

	if count > 0 {
		s.updateGauge()
	}
	return count, nil
}

// Count returns the number of stored sessions, expired included.
func (s *BadgerSessionStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *BadgerSessionStore) sessionIDsForUser(userID string) ([]string, error) {
	prefix := []byte(sessionUserKeyPrefix + userID + ":")
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan user sessions: %w", err)
	}
	return ids, nil
}

func (s *BadgerSessionStore) updateGauge() {
	if count, err := s.Count(context.Background()); err == nil {
		metrics.SessionsActive.Set(float64(count))
	}
}

// StartCleanupRoutine starts a goroutine that periodically sweeps
// idle-expired sessions. Returns a channel to close to stop it.
func (s *BadgerSessionStore) StartCleanupRoutine(interval time.Duration) chan struct{} {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := s.CleanupExpired(context.Background()); err != nil {
					logging.Error().Err(err).Msg("Session cleanup failed")
				} else if n > 0 {
					logging.Debug().Int("removed", n).Msg("Swept expired sessions")
				}
			case <-done:
				return
			}
		}
	}()
	return done
}
