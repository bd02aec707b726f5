// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/custodia/internal/cache"
	"github.com/tomtom215/custodia/internal/metrics"
)

// PoisonEntry is one exhausted task captured off the poison topic.
type PoisonEntry struct {
	MessageID  string    `json:"message_id"`
	Queue      string    `json:"queue"`
	TaskType   string    `json:"task_type,omitempty"`
	TenantID   string    `json:"tenant_id,omitempty"`
	Reason     string    `json:"reason"`
	Handler    string    `json:"handler,omitempty"`
	Payload    string    `json:"payload,omitempty"`
	PoisonedAt time.Time `json:"poisoned_at"`
}

// PoisonLogConfig bounds the in-memory poison log.
type PoisonLogConfig struct {
	// MaxEntries caps the log; the oldest entry is evicted when full.
	MaxEntries int

	// Retention is how long entries stay listable.
	Retention time.Duration

	// MaxPayloadBytes truncates stored payloads for display.
	MaxPayloadBytes int
}

// DefaultPoisonLogConfig returns production defaults.
func DefaultPoisonLogConfig() PoisonLogConfig {
	return PoisonLogConfig{
		MaxEntries:      10000,
		Retention:       7 * 24 * time.Hour,
		MaxPayloadBytes: 4096,
	}
}

// PoisonLogStats summarizes the poison log for the monitoring API.
type PoisonLogStats struct {
	Entries     int64            `json:"entries"`
	TotalAdded  int64            `json:"total_added"`
	TotalPruned int64            `json:"total_pruned"`
	OldestEntry *time.Time       `json:"oldest_entry,omitempty"`
	ByQueue     map[string]int64 `json:"by_queue"`
}

// PoisonLog keeps exhausted tasks inspectable through the monitoring
// API. It is a bounded in-memory view over the poison topic; the topic
// itself stays in JetStream for replay.
type PoisonLog struct {
	config PoisonLogConfig

	mu      sync.RWMutex
	entries *cache.MinHeap[*PoisonEntry]

	totalAdded  atomic.Int64
	totalPruned atomic.Int64
}

// NewPoisonLog creates a poison log.
func NewPoisonLog(cfg PoisonLogConfig) *PoisonLog {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultPoisonLogConfig().MaxEntries
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultPoisonLogConfig().Retention
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultPoisonLogConfig().MaxPayloadBytes
	}

	return &PoisonLog{
		config:  cfg,
		entries: cache.NewMinHeap[*PoisonEntry](cfg.MaxEntries),
	}
}

// Handler returns the consumer handler for the poison topic. Poisoned
// messages are always acked; losing sight of one beats redelivering it
// forever.
func (l *PoisonLog) Handler() message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		l.Add(EntryFromMessage(msg, l.config.MaxPayloadBytes))
		return nil
	}
}

// EntryFromMessage builds a poison entry from the metadata the poison
// queue middleware attaches.
func EntryFromMessage(msg *message.Message, maxPayload int) *PoisonEntry {
	payload := string(msg.Payload)
	if maxPayload > 0 && len(payload) > maxPayload {
		payload = payload[:maxPayload]
	}

	return &PoisonEntry{
		MessageID:  msg.UUID,
		Queue:      QueueFromTopic(msg.Metadata.Get(middleware.PoisonedTopicKey)),
		TaskType:   msg.Metadata.Get("task_type"),
		TenantID:   msg.Metadata.Get("tenant_id"),
		Reason:     msg.Metadata.Get(middleware.ReasonForPoisonedKey),
		Handler:    msg.Metadata.Get(middleware.PoisonedHandlerKey),
		Payload:    payload,
		PoisonedAt: time.Now().UTC(),
	}
}

// Add records an entry, evicting the oldest when at capacity.
func (l *PoisonLog) Add(entry *PoisonEntry) {
	l.mu.Lock()
	evicted := l.entries.Push(entry.MessageID, entry, entry.PoisonedAt)
	l.mu.Unlock()

	if evicted != nil {
		l.totalPruned.Add(1)
	}
	l.totalAdded.Add(1)

	metrics.TasksPoisoned.WithLabelValues(entry.Queue).Inc()
}

// Get returns an entry by message ID, or nil.
func (l *PoisonLog) Get(messageID string) *PoisonEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	heapEntry := l.entries.Get(messageID)
	if heapEntry == nil {
		return nil
	}
	return heapEntry.Value
}

// List returns all entries, oldest first.
func (l *PoisonLog) List() []*PoisonEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	heapEntries := l.entries.All()
	entries := make([]*PoisonEntry, 0, len(heapEntries))
	for _, heapEntry := range heapEntries {
		entries = append(entries, heapEntry.Value)
	}
	return entries
}

// Remove drops an entry after operator review. Returns true when found.
func (l *PoisonLog) Remove(messageID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if removed := l.entries.Remove(messageID); removed != nil {
		l.totalPruned.Add(1)
		return true
	}
	return false
}

// Cleanup prunes entries past retention. Run by the maintenance queue.
func (l *PoisonLog) Cleanup() int {
	l.mu.Lock()
	removed := l.entries.PopBefore(time.Now().Add(-l.config.Retention))
	l.mu.Unlock()

	l.totalPruned.Add(int64(len(removed)))
	return len(removed)
}

// Stats summarizes the log.
func (l *PoisonLog) Stats() PoisonLogStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := PoisonLogStats{
		Entries:     int64(l.entries.Len()),
		TotalAdded:  l.totalAdded.Load(),
		TotalPruned: l.totalPruned.Load(),
		ByQueue:     make(map[string]int64),
	}

	for _, heapEntry := range l.entries.All() {
		entry := heapEntry.Value
		stats.ByQueue[entry.Queue]++
		if stats.OldestEntry == nil || entry.PoisonedAt.Before(*stats.OldestEntry) {
			at := entry.PoisonedAt
			stats.OldestEntry = &at
		}
	}

	return stats
}
