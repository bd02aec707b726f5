// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/custodia/internal/logging"
)

// Email task types.
const (
	TaskEmailTicketAssigned = "email.ticket_assigned"
	TaskEmailReportReady    = "email.report_ready"
	TaskEmailAccountLocked  = "email.account_locked"
	TaskEmailGeneric        = "email.generic"
)

// EmailPayload is the payload carried by tasks on the email queue.
type EmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Validate checks the payload before sending.
func (p *EmailPayload) Validate() error {
	if len(p.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	for _, addr := range p.To {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("invalid recipient %q", addr)
		}
	}
	if p.Subject == "" {
		return fmt.Errorf("email has no subject")
	}
	return nil
}

// EmailSender delivers a rendered email. Implementations wrap SMTP or
// a provider API; LogSender is the default for deployments without an
// outbound mail path.
type EmailSender interface {
	Send(ctx context.Context, tenantID string, email *EmailPayload) error
}

// LogSender writes emails to the application log instead of delivering
// them. Default sender when no SMTP relay is configured.
type LogSender struct{}

// Send logs the email.
func (LogSender) Send(ctx context.Context, tenantID string, email *EmailPayload) error {
	logging.Ctx(ctx).Info().
		Str("tenant_id", tenantID).
		Strs("to", email.To).
		Str("subject", email.Subject).
		Int("body_bytes", len(email.Body)).
		Msg("Email delivery (log sender)")
	return nil
}

// NewEmailHandler returns the handler for the email queue. Malformed
// payloads fail without hope of recovery, but the retry budget is
// small enough that letting them burn through it and land on the
// poison queue keeps the pipeline simple.
func NewEmailHandler(sender EmailSender) TaskHandler {
	return func(ctx context.Context, task *Task) error {
		var payload EmailPayload
		if err := task.DecodePayload(&payload); err != nil {
			return err
		}
		if err := payload.Validate(); err != nil {
			return fmt.Errorf("task %s: %w", task.ID, err)
		}

		if err := sender.Send(ctx, task.TenantID, &payload); err != nil {
			return fmt.Errorf("send email for task %s: %w", task.ID, err)
		}
		return nil
	}
}
