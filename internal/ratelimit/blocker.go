// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/custodia/internal/audit"
	"github.com/tomtom215/custodia/internal/cache"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// ForensicRecorder receives rate-violation events. Recording is
// asynchronous and must never block or fail a request.
type ForensicRecorder interface {
	Record(ctx context.Context, event *models.ForensicEvent)
}

// BlockerConfig holds the violation escalation policy.
type BlockerConfig struct {
	// Threshold is the number of rate-limit violations within Window
	// that triggers a block.
	Threshold int

	// Disabled turns the per-class limiters into passthroughs
	// (DISABLE_RATE_LIMIT). Blocks already on record stay enforced.
	Disabled bool

	// Window is the violation tracking window.
	Window time.Duration

	// BaseDuration is the length of a first block. Each subsequent
	// block doubles until MaxDuration.
	BaseDuration time.Duration

	// MaxDuration caps the exponential backoff.
	MaxDuration time.Duration
}

// DefaultBlockerConfig returns the production defaults.
func DefaultBlockerConfig() BlockerConfig {
	return BlockerConfig{
		Threshold:    10,
		Window:       5 * time.Minute,
		BaseDuration: 15 * time.Minute,
		MaxDuration:  24 * time.Hour,
	}
}

// Blocker tracks rate-limit violations per IP and escalates repeat
// offenders to persistent blocks with exponential backoff.
type Blocker struct {
	store      *BlockStore
	violations *cache.SlidingWindowStore
	auditor    *audit.Logger
	forensics  ForensicRecorder
	cfg        BlockerConfig
}

// NewBlocker creates a blocker. auditor and forensics may be nil in
// tests.
func NewBlocker(store *BlockStore, auditor *audit.Logger, forensics ForensicRecorder, cfg BlockerConfig) *Blocker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultBlockerConfig().Threshold
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultBlockerConfig().Window
	}
	if cfg.BaseDuration <= 0 {
		cfg.BaseDuration = DefaultBlockerConfig().BaseDuration
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultBlockerConfig().MaxDuration
	}

	return &Blocker{
		store:      store,
		violations: cache.NewSlidingWindowStore(cfg.Window, 10, 100000),
		auditor:    auditor,
		forensics:  forensics,
		cfg:        cfg,
	}
}

// RecordViolation counts one rate-limit violation for the IP and imposes
// a block when the threshold is crossed. Returns the block if one was
// imposed, nil otherwise.
func (b *Blocker) RecordViolation(ctx context.Context, ip, scope string) (*models.BlockedIP, error) {
	if ip == "" {
		return nil, nil
	}

	metrics.RateLimitViolations.WithLabelValues(scope).Inc()
	b.violations.Increment(ip)

	if b.forensics != nil {
		b.forensics.Record(ctx, &models.ForensicEvent{
			TenantID: logging.TenantIDFromContext(ctx),
			Event:    models.ForensicRateViolation,
			IP:       ip,
			Detail:   "scope: " + scope,
		})
	}

	count := int(b.violations.Count(ip))
	if count < b.cfg.Threshold {
		return nil, nil
	}

	block, err := b.impose(ctx, ip, scope, count)
	if err != nil {
		return nil, err
	}

	// Reset the window so the next escalation needs fresh violations.
	b.violations.Remove(ip)
	return block, nil
}

// impose writes a block whose duration doubles with each prior block.
func (b *Blocker) impose(ctx context.Context, ip, scope string, violations int) (*models.BlockedIP, error) {
	now := time.Now()

	prior, err := b.store.Get(ctx, ip)
	if err != nil && !errors.Is(err, ErrNotBlocked) {
		return nil, err
	}

	block := &models.BlockedIP{
		IP:             ip,
		Reason:         "repeated rate limit violations",
		Scope:          scope,
		ViolationCount: violations,
		BlockCount:     1,
		CreatedAt:      now,
	}
	if prior != nil {
		block.BlockCount = prior.BlockCount + 1
		block.ViolationCount = prior.ViolationCount + violations
		block.CreatedAt = prior.CreatedAt
	}

	duration := backoffDuration(b.cfg.BaseDuration, b.cfg.MaxDuration, block.BlockCount)
	block.BlockedUntil = now.Add(duration)
	block.UpdatedAt = now

	if err := b.store.Put(ctx, block); err != nil {
		return nil, err
	}

	metrics.IPBlocksImposed.Inc()
	b.updateActiveGauge(ctx)
	logging.Ctx(ctx).Warn().
		Str("ip", ip).
		Str("scope", scope).
		Int("block_count", block.BlockCount).
		Dur("duration", duration).
		Msg("IP blocked after repeated rate limit violations")

	if b.auditor != nil {
		b.auditor.LogIPBlocked(ctx, ip, block.BlockCount, duration)
	}

	return block, nil
}

// backoffDuration computes base * 2^(blockCount-1), capped at max.
func backoffDuration(base, max time.Duration, blockCount int) time.Duration {
	if blockCount < 1 {
		blockCount = 1
	}

	duration := base
	for i := 1; i < blockCount; i++ {
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

// Check returns the active block for an IP, or nil when the IP is not
// currently blocked. Expired records are left in place so their
// BlockCount feeds the next escalation; the maintenance sweep removes
// them after a grace period.
func (b *Blocker) Check(ctx context.Context, ip string) (*models.BlockedIP, error) {
	block, err := b.store.Get(ctx, ip)
	if err != nil {
		if errors.Is(err, ErrNotBlocked) {
			return nil, nil
		}
		return nil, err
	}
	if block.Expired(time.Now()) {
		return nil, nil
	}
	return block, nil
}

// Unblock lifts the block for an IP. Returns ErrNotBlocked when no
// record exists.
func (b *Blocker) Unblock(ctx context.Context, ip string) error {
	if err := b.store.Delete(ctx, ip); err != nil {
		return err
	}
	b.violations.Remove(ip)
	b.updateActiveGauge(ctx)
	logging.Ctx(ctx).Info().Str("ip", ip).Msg("IP block lifted")
	return nil
}

// ListBlocked returns all block records, newest escalation first left to
// the caller to sort; active and expired records are both included so
// admins can see backoff history.
func (b *Blocker) ListBlocked(ctx context.Context) ([]models.BlockedIP, error) {
	return b.store.List(ctx)
}

// PurgeExpired removes blocks that lapsed more than gracePeriod ago.
// Run by the maintenance queue.
func (b *Blocker) PurgeExpired(ctx context.Context, gracePeriod time.Duration) (int, error) {
	purged, err := b.store.PurgeExpired(ctx, time.Now().Add(-gracePeriod))
	if err != nil {
		return purged, err
	}
	if purged > 0 {
		b.updateActiveGauge(ctx)
		logging.Ctx(ctx).Info().Int("purged", purged).Msg("Purged expired IP blocks")
	}
	return purged, nil
}

func (b *Blocker) updateActiveGauge(ctx context.Context) {
	if active, err := b.store.CountActive(ctx, time.Now()); err == nil {
		metrics.BlockedIPsActive.Set(float64(active))
	}
}
