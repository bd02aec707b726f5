// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package models

import "time"

// TicketStatus is the lifecycle state of a helpdesk ticket.
type TicketStatus string

const (
	TicketNew        TicketStatus = "NEW"
	TicketAssigned   TicketStatus = "ASSIGNED"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketOnHold     TicketStatus = "ON_HOLD"
	TicketResolved   TicketStatus = "RESOLVED"
	TicketClosed     TicketStatus = "CLOSED"
	TicketCancelled  TicketStatus = "CANCELLED"
)

// TicketPriority orders queue handling; CRITICAL tickets publish to the
// critical task queue.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "LOW"
	PriorityMedium   TicketPriority = "MEDIUM"
	PriorityHigh     TicketPriority = "HIGH"
	PriorityCritical TicketPriority = "CRITICAL"
)

// IsValidTicketPriority checks if a priority is one of the known values.
func IsValidTicketPriority(p TicketPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ticketTransitions maps each status to the statuses reachable from it.
// CANCELLED is reachable from every non-terminal status.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketNew:        {TicketAssigned, TicketCancelled},
	TicketAssigned:   {TicketInProgress, TicketOnHold, TicketCancelled},
	TicketInProgress: {TicketOnHold, TicketResolved, TicketCancelled},
	TicketOnHold:     {TicketAssigned, TicketInProgress, TicketCancelled},
	TicketResolved:   {TicketClosed, TicketInProgress},
	TicketClosed:     {},
	TicketCancelled:  {},
}

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to TicketStatus) bool {
	for _, allowed := range ticketTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status has no outgoing transitions.
func (s TicketStatus) Terminal() bool {
	return len(ticketTransitions[s]) == 0
}

// IsValidTicketStatus checks if a status is one of the known states.
func IsValidTicketStatus(s TicketStatus) bool {
	_, ok := ticketTransitions[s]
	return ok
}

// Ticket represents a helpdesk ticket. Number is sequential per tenant and
// is the identifier users see ("T-000042").
type Ticket struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	Number      int64          `json:"number"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority"`
	Status      TicketStatus   `json:"status"`
	AssigneeID  string         `json:"assignee_id,omitempty"`
	ReporterID  string         `json:"reporter_id"`
	Site        string         `json:"site"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`
}

// TicketComment is a threaded note on a ticket.
type TicketComment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketCreateRequest is the payload for creating a ticket.
type TicketCreateRequest struct {
	Title       string         `json:"title" validate:"required,max=300"`
	Description string         `json:"description" validate:"required,max=10000"`
	Priority    TicketPriority `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	Site        string         `json:"site" validate:"required,max=100"`
}

// TicketTransitionRequest moves a ticket to a new status.
type TicketTransitionRequest struct {
	Status     TicketStatus `json:"status" validate:"required"`
	AssigneeID string       `json:"assignee_id" validate:"omitempty"`
	Note       string       `json:"note" validate:"omitempty,max=10000"`
}

// TicketCommentRequest adds a comment to a ticket.
type TicketCommentRequest struct {
	Body string `json:"body" validate:"required,max=10000"`
}

// TicketFilter narrows ticket list queries.
type TicketFilter struct {
	Status     TicketStatus
	Priority   TicketPriority
	AssigneeID string
	Site       string
	Search     string
	Page       int
	Limit      int
}

// TicketEvent is published to the task bus and websocket feed on every
// ticket mutation.
type TicketEvent struct {
	TenantID  string         `json:"tenant_id"`
	TicketID  string         `json:"ticket_id"`
	Number    int64          `json:"number"`
	Event     string         `json:"event"` // created, transitioned, commented
	From      TicketStatus   `json:"from,omitempty"`
	To        TicketStatus   `json:"to,omitempty"`
	Priority  TicketPriority `json:"priority"`
	ActorID   string         `json:"actor_id"`
	Timestamp time.Time      `json:"timestamp"`
}
