// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"fmt"
	"sync"
)

// Mux dispatches tasks by type within one queue. The critical and
// high_priority queues carry mixed task types, so each gets a mux the
// application registers its handlers on.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]TaskHandler
}

// NewMux creates an empty dispatcher.
func NewMux() *Mux {
	return &Mux{handlers: make(map[string]TaskHandler)}
}

// Register binds a handler to a task type. Registering the same type
// twice is a programming error.
func (m *Mux) Register(taskType string, handler TaskHandler) error {
	if taskType == "" {
		return fmt.Errorf("task type required")
	}
	if handler == nil {
		return fmt.Errorf("handler required for %s", taskType)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.handlers[taskType]; exists {
		return fmt.Errorf("handler for %s already registered", taskType)
	}
	m.handlers[taskType] = handler
	return nil
}

// Handle dispatches one task. Unknown task types fail; after the retry
// budget they surface in the poison log rather than vanishing.
func (m *Mux) Handle(ctx context.Context, task *Task) error {
	m.mu.RLock()
	handler, ok := m.handlers[task.Type]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no handler for task type %q", task.Type)
	}
	return handler(ctx, task)
}

// Types returns the registered task types.
func (m *Mux) Types() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	types := make([]string, 0, len(m.handlers))
	for t := range m.handlers {
		types = append(types, t)
	}
	return types
}

// WrapExternal guards a handler with the external caller so every task
// on the external_api queue passes the rate limiter and circuit
// breaker.
func WrapExternal(caller *ExternalCaller, handler TaskHandler) TaskHandler {
	return func(ctx context.Context, task *Task) error {
		return caller.Do(ctx, func(ctx context.Context) error {
			return handler(ctx, task)
		})
	}
}
