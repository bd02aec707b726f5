// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/custodia/internal/metrics"
)

// NewCircuitBreaker creates a circuit breaker with the given settings.
// State changes are exported as a gauge (0=closed, 1=half-open, 2=open).
func NewCircuitBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[interface{}] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	}

	return gobreaker.NewCircuitBreaker[interface{}](settings)
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// ExternalCaller guards outbound calls on the external_api queue.
// Calls wait on a token bucket first, then pass through the circuit
// breaker, so a flapping third-party service neither gets hammered nor
// stalls the queue forever.
type ExternalCaller struct {
	name    string
	breaker *gobreaker.CircuitBreaker[interface{}]
	limiter *rate.Limiter
}

// NewExternalCaller creates a guarded caller.
func NewExternalCaller(cfg BreakerConfig) *ExternalCaller {
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &ExternalCaller{
		name:    cfg.Name,
		breaker: NewCircuitBreaker(cfg),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Do executes fn behind the rate limiter and circuit breaker. Waiting
// for a token respects context cancellation.
func (c *ExternalCaller) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
	}
	return err
}

// State returns the breaker state as a string for the monitoring API.
func (c *ExternalCaller) State() string {
	return c.breaker.State().String()
}

// Rejected reports whether the error came from the breaker itself
// rather than the wrapped call.
func Rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
