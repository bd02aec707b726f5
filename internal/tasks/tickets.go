// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"fmt"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
)

// TaskTicketEscalation is enqueued on the critical queue when a ticket
// is created with or transitioned to CRITICAL priority.
const TaskTicketEscalation = "ticket.escalation"

// NewTicketEscalationHandler returns the critical-queue handler for
// escalated tickets. It logs the escalation and notifies on-call
// recipients through the email queue when a publisher is provided.
func NewTicketEscalationHandler(publisher *Publisher, onCall []string) TaskHandler {
	return func(ctx context.Context, task *Task) error {
		var event models.TicketEvent
		if err := task.DecodePayload(&event); err != nil {
			return err
		}
		if event.TicketID == "" || event.TenantID == "" {
			return fmt.Errorf("task %s: escalation missing identifiers", task.ID)
		}

		logging.Ctx(ctx).Warn().
			Str("tenant_id", event.TenantID).
			Str("ticket_id", event.TicketID).
			Int64("ticket_number", event.Number).
			Str("event", event.Event).
			Msg("critical ticket escalation")

		if publisher == nil || len(onCall) == 0 {
			return nil
		}

		email, err := NewTask(TaskEmailGeneric, event.TenantID, task.CorrelationID, &EmailPayload{
			To:      onCall,
			Subject: fmt.Sprintf("[CRITICAL] Ticket #%d", event.Number),
			Body:    fmt.Sprintf("Ticket #%d was %s with CRITICAL priority.", event.Number, event.Event),
		})
		if err != nil {
			return err
		}
		return publisher.Enqueue(ctx, QueueEmail, email)
	}
}
