// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/logging"
)

// TaskWebhookDeliver is the outbound notification task type on the
// external_api queue.
const TaskWebhookDeliver = "webhook.deliver"

// WebhookPayload is the payload carried by webhook delivery tasks. Body
// is delivered as the JSON value of the "data" field alongside the
// event name and tenant.
type WebhookPayload struct {
	URL     string            `json:"url"`
	Event   string            `json:"event"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Validate checks the payload before delivery.
func (p *WebhookPayload) Validate() error {
	if !strings.HasPrefix(p.URL, "http://") && !strings.HasPrefix(p.URL, "https://") {
		return fmt.Errorf("invalid webhook url %q", p.URL)
	}
	if p.Event == "" {
		return fmt.Errorf("webhook has no event name")
	}
	return nil
}

// NewWebhookHandler returns the handler for webhook deliveries. The
// handler POSTs a JSON envelope to the target; any non-2xx status is an
// error so the retry middleware re-drives the delivery. Register it
// wrapped in WrapExternal so the rate limiter and circuit breaker guard
// the outbound call.
func NewWebhookHandler(client *http.Client) TaskHandler {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return func(ctx context.Context, task *Task) error {
		var payload WebhookPayload
		if err := task.DecodePayload(&payload); err != nil {
			return err
		}
		if err := payload.Validate(); err != nil {
			return fmt.Errorf("task %s: %w", task.ID, err)
		}

		envelope := map[string]interface{}{
			"event":     payload.Event,
			"tenant_id": task.TenantID,
			"task_id":   task.ID,
			"sent_at":   time.Now().UTC(),
		}
		if len(payload.Body) > 0 {
			envelope["data"] = payload.Body
		}
		body, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("encode webhook envelope: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, payload.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range payload.Headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("deliver webhook %s: %w", payload.Event, err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("webhook %s: target returned %d", payload.Event, resp.StatusCode)
		}

		logging.Ctx(ctx).Debug().
			Str("event", payload.Event).
			Int("status", resp.StatusCode).
			Msg("Webhook delivered")
		return nil
	}
}
