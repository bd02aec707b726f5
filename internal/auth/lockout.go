// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/audit"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
)

// Lockout errors
var (
	// ErrAccountLocked is returned when login is attempted on a locked subject.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrLockoutNotFound is returned when no lockout entry exists.
	ErrLockoutNotFound = errors.New("lockout entry not found")
)

const lockoutKeyPrefix = "lockout:"

// LockoutConfig holds the failed-login lockout policy.
type LockoutConfig struct {
	// MaxAttempts is the number of failed attempts before lockout.
	MaxAttempts int

	// LockoutDuration is the first lockout length. Each subsequent
	// lockout doubles until MaxLockoutDuration.
	LockoutDuration time.Duration

	// MaxLockoutDuration caps the exponential backoff.
	MaxLockoutDuration time.Duration

	// ResetWindow resets the failure counter when the last failure is
	// older than this.
	ResetWindow time.Duration
}

// DefaultLockoutConfig returns the production defaults.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts:        5,
		LockoutDuration:    15 * time.Minute,
		MaxLockoutDuration: 24 * time.Hour,
		ResetWindow:        time.Hour,
	}
}

// LockoutEntry tracks failed attempts for one subject (username or IP).
type LockoutEntry struct {
	Subject        string    `json:"subject"`
	FailedAttempts int       `json:"failed_attempts"`
	LockoutCount   int       `json:"lockout_count"`
	LockedUntil    time.Time `json:"locked_until"`
	LastAttempt    time.Time `json:"last_attempt"`
}

// IsLocked returns true while the lockout is in force.
func (e *LockoutEntry) IsLocked(now time.Time) bool {
	return now.Before(e.LockedUntil)
}

// LockoutStore defines lockout entry persistence.
type LockoutStore interface {
	Get(ctx context.Context, subject string) (*LockoutEntry, error)
	Put(ctx context.Context, entry *LockoutEntry) error
	Delete(ctx context.Context, subject string) error
}

// BadgerLockoutStore persists lockout entries so restarting the server
// does not reset an attacker's counter.
type BadgerLockoutStore struct {
	db *badger.DB
}

// NewBadgerLockoutStore creates a Badger-backed lockout store.
func NewBadgerLockoutStore(db *badger.DB) *BadgerLockoutStore {
	return &BadgerLockoutStore{db: db}
}

func lockoutKey(subject string) []byte {
	return []byte(lockoutKeyPrefix + subject)
}

// Get retrieves the lockout entry for a subject.
func (s *BadgerLockoutStore) Get(ctx context.Context, subject string) (*LockoutEntry, error) {
	var entry LockoutEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(lockoutKey(subject))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrLockoutNotFound
		}
		return nil, fmt.Errorf("failed to get lockout entry: %w", err)
	}
	return &entry, nil
}

// Put stores a lockout entry. The Badger TTL keeps stale counters from
// accumulating forever.
func (s *BadgerLockoutStore) Put(ctx context.Context, entry *LockoutEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal lockout entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(lockoutKey(entry.Subject), data).WithTTL(7 * 24 * time.Hour)
		return txn.SetEntry(e)
	})
}

// Delete removes the lockout entry for a subject.
func (s *BadgerLockoutStore) Delete(ctx context.Context, subject string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(lockoutKey(subject))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// MemoryLockoutStore is an in-memory LockoutStore for tests.
type MemoryLockoutStore struct {
	mu      sync.RWMutex
	entries map[string]*LockoutEntry
}

// NewMemoryLockoutStore creates an in-memory lockout store.
func NewMemoryLockoutStore() *MemoryLockoutStore {
	return &MemoryLockoutStore{entries: make(map[string]*LockoutEntry)}
}

// Get retrieves the lockout entry for a subject.
func (s *MemoryLockoutStore) Get(ctx context.Context, subject string) (*LockoutEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[subject]
	if !ok {
		return nil, ErrLockoutNotFound
	}
	copied := *entry
	return &copied, nil
}

// Put stores a lockout entry.
func (s *MemoryLockoutStore) Put(ctx context.Context, entry *LockoutEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	s.entries[entry.Subject] = &copied
	return nil
}

// Delete removes the lockout entry for a subject.
func (s *MemoryLockoutStore) Delete(ctx context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, subject)
	return nil
}

// IPSubject builds the lockout subject for per-IP tracking so address
// and username counters never collide.
func IPSubject(ip string) string {
	return "ip:" + ip
}

// LockoutManager tracks failed login attempts per subject and locks
// subjects out with exponential backoff.
type LockoutManager struct {
	store   LockoutStore
	auditor *audit.Logger
	cfg     LockoutConfig
}

// NewLockoutManager creates a lockout manager. auditor may be nil in tests.
func NewLockoutManager(store LockoutStore, auditor *audit.Logger, cfg LockoutConfig) *LockoutManager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultLockoutConfig().MaxAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = DefaultLockoutConfig().LockoutDuration
	}
	if cfg.MaxLockoutDuration <= 0 {
		cfg.MaxLockoutDuration = DefaultLockoutConfig().MaxLockoutDuration
	}
	if cfg.ResetWindow <= 0 {
		cfg.ResetWindow = DefaultLockoutConfig().ResetWindow
	}
	return &LockoutManager{store: store, auditor: auditor, cfg: cfg}
}

// Check returns ErrAccountLocked while the subject is locked out.
func (m *LockoutManager) Check(ctx context.Context, subject string) error {
	entry, err := m.store.Get(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrLockoutNotFound) {
			return nil
		}
		return err
	}
	if entry.IsLocked(time.Now()) {
		return fmt.Errorf("%w until %s", ErrAccountLocked, entry.LockedUntil.Format(time.RFC3339))
	}
	return nil
}

// RecordFailure counts one failed attempt. Returns the entry if the
// failure triggered a lockout, nil otherwise.
func (m *LockoutManager) RecordFailure(ctx context.Context, subject string, source audit.Source) (*LockoutEntry, error) {
	now := time.Now()

	entry, err := m.store.Get(ctx, subject)
	if err != nil {
		if !errors.Is(err, ErrLockoutNotFound) {
			return nil, err
		}
		entry = &LockoutEntry{Subject: subject}
	}

	// Stale counters start over.
	if !entry.LastAttempt.IsZero() && now.Sub(entry.LastAttempt) > m.cfg.ResetWindow && !entry.IsLocked(now) {
		entry.FailedAttempts = 0
	}

	entry.FailedAttempts++
	entry.LastAttempt = now

	var locked *LockoutEntry
	if entry.FailedAttempts >= m.cfg.MaxAttempts {
		entry.LockoutCount++
		duration := lockoutDuration(m.cfg.LockoutDuration, m.cfg.MaxLockoutDuration, entry.LockoutCount)
		entry.LockedUntil = now.Add(duration)
		entry.FailedAttempts = 0
		locked = entry

		metrics.AccountLockouts.Inc()
		logging.Ctx(ctx).Warn().
			Str("subject", subject).
			Int("lockout_count", entry.LockoutCount).
			Dur("duration", duration).
			Msg("Subject locked out after repeated failed logins")

		if m.auditor != nil {
			m.auditor.LogAuthLockout(ctx, subject, subject, source, duration, m.cfg.MaxAttempts)
		}
	}

	if err := m.store.Put(ctx, entry); err != nil {
		return nil, err
	}
	return locked, nil
}

// Clear resets the failure counter after a successful login. The lockout
// count is kept so repeat offenders still escalate.
func (m *LockoutManager) Clear(ctx context.Context, subject string) error {
	entry, err := m.store.Get(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrLockoutNotFound) {
			return nil
		}
		return err
	}
	if entry.LockoutCount == 0 {
		return m.store.Delete(ctx, subject)
	}
	entry.FailedAttempts = 0
	entry.LockedUntil = time.Time{}
	return m.store.Put(ctx, entry)
}

// lockoutDuration computes base * 2^(lockoutCount-1), capped at max.
func lockoutDuration(base, max time.Duration, lockoutCount int) time.Duration {
	if lockoutCount < 1 {
		lockoutCount = 1
	}
	duration := base
	for i := 1; i < lockoutCount; i++ {
		duration *= 2
		if duration >= max {
			return max
		}
	}
	if duration > max {
		return max
	}
	return duration
}
