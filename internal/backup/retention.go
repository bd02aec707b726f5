// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ApplyRetention prunes completed backups beyond the policy's count and
// age bounds. Failed backups are pruned on age alone. The most recent
// completed backup is always kept, whatever its age. Returns the number
// of backups removed.
func (m *Manager) ApplyRetention(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	policy := m.metadata.Retention
	now := time.Now()

	completed := make([]*Backup, 0, len(m.metadata.Backups))
	for _, b := range m.metadata.Backups {
		if b.Status == StatusCompleted {
			completed = append(completed, b)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CreatedAt.After(completed[j].CreatedAt)
	})

	var doomed []string
	for i, b := range completed {
		if i == 0 {
			continue // newest completed backup survives every policy
		}
		tooMany := policy.MaxCount > 0 && i >= policy.MaxCount
		tooOld := policy.MaxAge > 0 && now.Sub(b.CreatedAt) > policy.MaxAge
		if tooMany || tooOld {
			doomed = append(doomed, b.ID)
		}
	}
	for _, b := range m.metadata.Backups {
		if b.Status == StatusCompleted || b.Status == StatusInProgress {
			continue
		}
		if policy.MaxAge > 0 && now.Sub(b.CreatedAt) > policy.MaxAge {
			doomed = append(doomed, b.ID)
		}
	}

	var errs []error
	removed := 0
	for _, id := range doomed {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := m.deleteLocked(id); err != nil {
			errs = append(errs, fmt.Errorf("prune %s: %w", id, err))
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info().
			Int("removed", removed).
			Int("max_count", policy.MaxCount).
			Dur("max_age", policy.MaxAge).
			Msg("Backup retention applied")
	}
	return removed, errors.Join(errs...)
}

// SetRetention replaces the active retention policy and persists it.
func (m *Manager) SetRetention(policy RetentionPolicy) error {
	if policy.MaxCount <= 0 {
		return fmt.Errorf("retention max_count must be positive, got %d", policy.MaxCount)
	}
	if policy.MaxAge < 0 {
		return fmt.Errorf("retention max_age must not be negative, got %s", policy.MaxAge)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata.Retention = policy
	return m.saveMetadataLocked()
}
