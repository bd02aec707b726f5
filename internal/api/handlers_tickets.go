// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
	"github.com/tomtom215/custodia/internal/tasks"
)

// CreateTicket opens a helpdesk ticket. CRITICAL tickets are escalated
// through the critical task queue after the row is committed.
func (h *Handlers) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req models.TicketCreateRequest
	if !decode(w, r, &req) {
		return
	}

	session := h.session(r)
	ticket, err := h.db.CreateTicket(r.Context(), session.TenantID, session.UserID, &req)
	if err != nil {
		mapError(w, r, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastTicketCreated(ticket)
	}
	h.escalateIfCritical(r, ticket, "created")
	respond(w, r, http.StatusCreated, ticket)
}

// GetTicket returns one ticket with its comments.
func (h *Handlers) GetTicket(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantID(r)
	ticket, err := h.db.GetTicket(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}

	comments, err := h.db.ListTicketComments(r.Context(), tenantID, ticket.ID)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]interface{}{
		"ticket":   ticket,
		"comments": comments,
	})
}

// TransitionTicket moves a ticket along its lifecycle. Illegal
// transitions come back as conflicts from the store.
func (h *Handlers) TransitionTicket(w http.ResponseWriter, r *http.Request) {
	var req models.TicketTransitionRequest
	if !decode(w, r, &req) {
		return
	}

	ticket, err := h.db.TransitionTicket(r.Context(), h.tenantID(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		mapError(w, r, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastTicketUpdated(ticket)
	}
	respond(w, r, http.StatusOK, ticket)
}

// CommentTicket appends a comment.
func (h *Handlers) CommentTicket(w http.ResponseWriter, r *http.Request) {
	var req models.TicketCommentRequest
	if !decode(w, r, &req) {
		return
	}

	session := h.session(r)
	comment, err := h.db.AddTicketComment(r.Context(), session.TenantID, chi.URLParam(r, "id"), session.UserID, req.Body)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, comment)
}

// ListTickets returns one page of tickets matching the query filters.
func (h *Handlers) ListTickets(w http.ResponseWriter, r *http.Request) {
	page, limit := h.pagination(r)
	filter := models.TicketFilter{
		Status:     models.TicketStatus(r.URL.Query().Get("status")),
		Priority:   models.TicketPriority(r.URL.Query().Get("priority")),
		AssigneeID: r.URL.Query().Get("assignee_id"),
		Site:       r.URL.Query().Get("site"),
		Search:     r.URL.Query().Get("search"),
		Page:       page,
		Limit:      limit,
	}

	tickets, total, err := h.db.ListTickets(r.Context(), h.tenantID(r), filter)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondList(w, r, tickets, total, page, limit)
}

// escalateIfCritical enqueues an escalation task for CRITICAL tickets.
// A broker outage must not fail the ticket write, so enqueue errors are
// logged and swallowed.
func (h *Handlers) escalateIfCritical(r *http.Request, ticket *models.Ticket, event string) {
	if h.publisher == nil || ticket.Priority != models.PriorityCritical {
		return
	}

	ctx := r.Context()
	task, err := tasks.NewTask(tasks.TaskTicketEscalation, ticket.TenantID,
		logging.CorrelationIDFromContext(ctx), &models.TicketEvent{
			TenantID: ticket.TenantID,
			TicketID: ticket.ID,
			Number:   ticket.Number,
			Event:    event,
			To:       ticket.Status,
			Priority: ticket.Priority,
			ActorID:  h.session(r).UserID,
		})
	if err == nil {
		err = h.publisher.Enqueue(ctx, tasks.QueueCritical, task)
	}
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("ticket_id", ticket.ID).
			Msg("failed to enqueue ticket escalation")
	}
}
