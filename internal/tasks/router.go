// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
)

// TaskHandler processes one decoded task. A returned error triggers
// retry; exhausted retries route the message to the poison topic.
type TaskHandler func(ctx context.Context, task *Task) error

// Router wraps the Watermill router with the task middleware stack:
// panic recovery, exponential backoff retry, and poison queue routing
// for permanent failures.
type Router struct {
	router     *message.Router
	config     RouterConfig
	logger     watermill.LoggerAdapter
	serializer *Serializer
	handlers   map[string]*message.Handler
	running    bool
}

// NewRouter creates a router with pre-configured middleware.
// poisonPublisher may be nil to disable the poison queue.
func NewRouter(
	cfg *RouterConfig,
	poisonPublisher message.Publisher,
	logger watermill.LoggerAdapter,
) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if cfg == nil {
		defaultCfg := DefaultRouterConfig()
		cfg = &defaultCfg
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router:     wmRouter,
		config:     *cfg,
		logger:     logger,
		serializer: NewSerializer(),
		handlers:   make(map[string]*message.Handler),
	}

	wmRouter.AddPlugin(plugin.SignalsHandler)

	// Middleware order (outer to inner): recoverer converts panics to
	// errors, retry handles transient failures, poison queue catches
	// what retry could not fix.
	wmRouter.AddMiddleware(middleware.Recoverer)

	retryMiddleware := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retryMiddleware.Middleware)

	if poisonPublisher != nil && cfg.PoisonQueueTopic != "" {
		poisonQueue, err := middleware.PoisonQueue(poisonPublisher, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poisonQueue)
	}

	return r, nil
}

// AddQueueHandler registers a task handler for a queue. The wrapper
// decodes the envelope, restores the task's correlation and tenant IDs
// into the context, and records per-queue metrics.
func (r *Router) AddQueueHandler(queue string, subscriber message.Subscriber, handler TaskHandler) (*message.Handler, error) {
	if !IsValidQueue(queue) {
		return nil, fmt.Errorf("unknown queue %q", queue)
	}

	name := "tasks-" + queue
	h := r.router.AddConsumerHandler(
		name,
		TopicFor(queue),
		subscriber,
		r.wrapHandler(queue, handler),
	)
	r.handlers[name] = h
	return h, nil
}

// AddConsumerHandler registers a raw message handler on an arbitrary
// topic. Used for the poison topic consumer, which must not decode the
// envelope strictly.
func (r *Router) AddConsumerHandler(name, topic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) *message.Handler {
	h := r.router.AddConsumerHandler(name, topic, subscriber, handler)
	r.handlers[name] = h
	return h
}

func (r *Router) wrapHandler(queue string, handler TaskHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		task, err := r.serializer.Unmarshal(msg.Payload)
		if err != nil {
			// A malformed envelope never deserializes on retry either;
			// fail straight through to the poison queue.
			metrics.RecordTask(queue, 0, err)
			return err
		}

		ctx := msg.Context()
		if task.CorrelationID != "" {
			ctx = logging.ContextWithCorrelationID(ctx, task.CorrelationID)
		}
		if task.TenantID != "" {
			ctx = logging.ContextWithTenantID(ctx, task.TenantID)
		}

		start := time.Now()
		err = handler(ctx, task)
		metrics.RecordTask(queue, time.Since(start), err)

		if err != nil {
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("queue", queue).
				Str("task_id", task.ID).
				Str("task_type", task.Type).
				Msg("Task handler failed")
			return err
		}
		return nil
	}
}

// Run starts the router and blocks until context cancellation or Close.
func (r *Router) Run(ctx context.Context) error {
	r.running = true
	defer func() { r.running = false }()
	return r.router.Run(ctx)
}

// Running returns a channel that closes once the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether the router is processing messages.
func (r *Router) IsRunning() bool {
	return r.running
}

// Close gracefully stops the router, waiting for in-flight handlers up
// to CloseTimeout.
func (r *Router) Close() error {
	return r.router.Close()
}
