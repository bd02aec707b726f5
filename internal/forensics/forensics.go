// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package forensics records session-lifecycle events (logins, logouts,
// lockouts, address changes) to the forensic trail in DuckDB. Events are
// buffered and written by a background goroutine so authentication never
// waits on the database; when the buffer is full events are dropped and
// counted rather than blocking.
package forensics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// Store defines the persistence operations the recorder needs.
type Store interface {
	InsertForensicEvent(ctx context.Context, event *models.ForensicEvent) error
	QueryForensicEvents(ctx context.Context, tenantID string, filter models.ForensicFilter) ([]models.ForensicEvent, int64, error)
	SummarizeForensicEvents(ctx context.Context, tenantID string, window time.Duration) (*models.ForensicSummary, error)
	DeleteForensicEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

// Config holds recorder settings.
type Config struct {
	// BufferSize is the event channel capacity.
	BufferSize int

	// RetentionDays is how long events are kept before the maintenance
	// sweep removes them.
	RetentionDays int

	// WriteTimeout bounds each database write.
	WriteTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:    1000,
		RetentionDays: 90,
		WriteTimeout:  5 * time.Second,
	}
}

// Recorder buffers forensic events and persists them asynchronously.
type Recorder struct {
	store  Store
	cfg    Config
	events chan *models.ForensicEvent
	done   chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRecorder creates and starts a recorder.
func NewRecorder(store Store, cfg Config) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultConfig().RetentionDays
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	r := &Recorder{
		store:  store,
		cfg:    cfg,
		events: make(chan *models.ForensicEvent, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.writer()
	return r
}

// Record queues one event. Never blocks: a full buffer drops the event.
func (r *Recorder) Record(ctx context.Context, event *models.ForensicEvent) {
	if event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.CorrelationID == "" {
		event.CorrelationID = logging.CorrelationIDFromContext(ctx)
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}

	select {
	case r.events <- event:
		metrics.ForensicEventsRecorded.WithLabelValues(string(event.Event)).Inc()
	default:
		logging.Warn().
			Str("event", string(event.Event)).
			Msg("Forensic event buffer full, event dropped")
	}
}

func (r *Recorder) writer() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.events:
			r.write(event)
		case <-r.done:
			// Drain what is already queued.
			for {
				select {
				case event := <-r.events:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(event *models.ForensicEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	if err := r.store.InsertForensicEvent(ctx, event); err != nil {
		logging.Error().
			Err(err).
			Str("event", string(event.Event)).
			Msg("Failed to persist forensic event")
	}
}

// Close stops the writer after draining queued events.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()
}

// Query returns events for the tenant matching the filter, plus the
// total match count for pagination.
func (r *Recorder) Query(ctx context.Context, tenantID string, filter models.ForensicFilter) ([]models.ForensicEvent, int64, error) {
	return r.store.QueryForensicEvents(ctx, tenantID, filter)
}

// Summarize aggregates the tenant's events over the window for the
// monitoring API.
func (r *Recorder) Summarize(ctx context.Context, tenantID string, window time.Duration) (*models.ForensicSummary, error) {
	return r.store.SummarizeForensicEvents(ctx, tenantID, window)
}

// DeleteExpired prunes events older than the retention period. Run by
// the maintenance queue. Returns the number of rows removed.
func (r *Recorder) DeleteExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -r.cfg.RetentionDays)
	return r.store.DeleteForensicEvents(ctx, cutoff)
}
