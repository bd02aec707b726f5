// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Helpdesk ticket operations. Ticket numbers are sequential per tenant,
// allocated from ticket_sequences inside the create transaction. Status
// changes go through TransitionTicket, which enforces the lifecycle state
// machine and stamps resolved_at/closed_at.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// CreateTicket inserts a new ticket with the tenant's next sequential number.
func (db *DB) CreateTicket(ctx context.Context, tenantID, reporterID string, req *models.TicketCreateRequest) (*models.Ticket, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	number, err := nextTicketNumber(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ticket := &models.Ticket{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Number:      number,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      models.TicketNew,
		ReporterID:  reporterID,
		Site:        req.Site,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	start := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tickets (id, tenant_id, number, title, description, priority, status, assignee_id, reporter_id, site, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?)
	`, ticket.ID, tenantID, ticket.Number, ticket.Title, ticket.Description,
		string(ticket.Priority), string(ticket.Status), reporterID, ticket.Site,
		ticket.CreatedAt, ticket.UpdatedAt)
	metrics.RecordDBQuery("insert", "tickets", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ticket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ticket: %w", err)
	}
	return ticket, nil
}

// nextTicketNumber allocates the tenant's next ticket number inside tx.
func nextTicketNumber(ctx context.Context, tx *sql.Tx, tenantID string) (int64, error) {
	var number int64
	err := tx.QueryRowContext(ctx,
		`SELECT next_number FROM ticket_sequences WHERE tenant_id = ?`, tenantID).Scan(&number)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		number = 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ticket_sequences (tenant_id, next_number) VALUES (?, 2)`, tenantID); err != nil {
			return 0, fmt.Errorf("failed to seed ticket sequence: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("failed to read ticket sequence: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE ticket_sequences SET next_number = next_number + 1 WHERE tenant_id = ?`, tenantID); err != nil {
			return 0, fmt.Errorf("failed to bump ticket sequence: %w", err)
		}
	}
	return number, nil
}

// GetTicket retrieves a ticket by ID within a tenant.
func (db *DB) GetTicket(ctx context.Context, tenantID, id string) (*models.Ticket, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, ticketSelect+` WHERE tenant_id = ? AND id = ?`, tenantID, id)
	ticket, err := scanTicket(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ticket %q", ErrNotFound, id)
	}
	return ticket, err
}

// GetTicketByNumber retrieves a ticket by its per-tenant number.
func (db *DB) GetTicketByNumber(ctx context.Context, tenantID string, number int64) (*models.Ticket, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, ticketSelect+` WHERE tenant_id = ? AND number = ?`, tenantID, number)
	ticket, err := scanTicket(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ticket #%d", ErrNotFound, number)
	}
	return ticket, err
}

// TransitionTicket moves a ticket to a new status, enforcing the lifecycle
// state machine. Invalid transitions return ErrConflict. RESOLVED stamps
// resolved_at, CLOSED stamps closed_at, and reopening (RESOLVED back to
// IN_PROGRESS) clears resolved_at.
func (db *DB) TransitionTicket(ctx context.Context, tenantID, id string, req *models.TicketTransitionRequest) (*models.Ticket, error) {
	ticket, err := db.GetTicket(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(ticket.Status, req.Status) {
		return nil, fmt.Errorf("%w: cannot transition ticket from %s to %s", ErrConflict, ticket.Status, req.Status)
	}

	now := time.Now()
	ticket.Status = req.Status
	ticket.UpdatedAt = now
	if req.AssigneeID != "" {
		ticket.AssigneeID = req.AssigneeID
	}

	switch req.Status {
	case models.TicketResolved:
		ticket.ResolvedAt = &now
	case models.TicketClosed:
		ticket.ClosedAt = &now
	case models.TicketInProgress:
		ticket.ResolvedAt = nil // reopened
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx, `
		UPDATE tickets SET status = ?, assignee_id = ?, resolved_at = ?, closed_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`, string(ticket.Status), nullIfEmpty(ticket.AssigneeID),
		nullableTime(ticket.ResolvedAt), nullableTime(ticket.ClosedAt), now,
		tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to transition ticket: %w", err)
	}
	if err := checkRowsAffected(result, "ticket"); err != nil {
		return nil, err
	}
	return ticket, nil
}

// AddTicketComment appends a comment to a ticket.
func (db *DB) AddTicketComment(ctx context.Context, tenantID, ticketID, authorID, body string) (*models.TicketComment, error) {
	// The ticket must exist in this tenant.
	if _, err := db.GetTicket(ctx, tenantID, ticketID); err != nil {
		return nil, err
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	comment := &models.TicketComment{
		ID:        uuid.New().String(),
		TicketID:  ticketID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now(),
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO ticket_comments (id, tenant_id, ticket_id, author_id, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, comment.ID, tenantID, ticketID, authorID, body, comment.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ticket comment: %w", err)
	}
	return comment, nil
}

// ListTicketComments returns a ticket's comments oldest first.
func (db *DB) ListTicketComments(ctx context.Context, tenantID, ticketID string) ([]models.TicketComment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, ticket_id, author_id, body, created_at
		FROM ticket_comments
		WHERE tenant_id = ? AND ticket_id = ?
		ORDER BY created_at
	`, tenantID, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket comments: %w", err)
	}
	defer rows.Close()

	comments := []models.TicketComment{}
	for rows.Next() {
		var c models.TicketComment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// ListTickets returns a filtered, paginated page of tickets plus the total
// count matching the filter.
func (db *DB) ListTickets(ctx context.Context, tenantID string, filter models.TicketFilter) ([]models.Ticket, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where := "WHERE tenant_id = ?"
	args := []interface{}{tenantID}

	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		where += " AND priority = ?"
		args = append(args, string(filter.Priority))
	}
	if filter.AssigneeID != "" {
		where += " AND assignee_id = ?"
		args = append(args, filter.AssigneeID)
	}
	if filter.Site != "" {
		where += " AND site = ?"
		args = append(args, filter.Site)
	}
	if filter.Search != "" {
		where += " AND (title ILIKE ? OR description ILIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	var total int64
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tickets "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx,
		ticketSelect+" "+where+" ORDER BY number DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, total, rows.Err()
}

// TicketSummaryRow aggregates ticket counts per status/priority for reports.
type TicketSummaryRow struct {
	Status   string
	Priority string
	Count    int64
}

// SummarizeTickets aggregates ticket counts by status and priority over a
// creation window. Used by the ticket summary report worker.
func (db *DB) SummarizeTickets(ctx context.Context, tenantID string, from, to time.Time) ([]TicketSummaryRow, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT status, priority, COUNT(*) AS count
		FROM tickets
		WHERE tenant_id = ? AND created_at >= ? AND created_at < ?
		GROUP BY status, priority
		ORDER BY status, priority
	`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize tickets: %w", err)
	}
	defer rows.Close()

	summary := []TicketSummaryRow{}
	for rows.Next() {
		var row TicketSummaryRow
		if err := rows.Scan(&row.Status, &row.Priority, &row.Count); err != nil {
			return nil, fmt.Errorf("failed to scan ticket summary: %w", err)
		}
		summary = append(summary, row)
	}
	return summary, rows.Err()
}

const ticketSelect = `
	SELECT id, tenant_id, number, title, description, priority, status, assignee_id, reporter_id, site, created_at, updated_at, resolved_at, closed_at
	FROM tickets`

func scanTicket(scan func(dest ...interface{}) error) (*models.Ticket, error) {
	var t models.Ticket
	var priority, status string
	var assigneeID sql.NullString
	var resolvedAt, closedAt sql.NullTime

	err := scan(&t.ID, &t.TenantID, &t.Number, &t.Title, &t.Description,
		&priority, &status, &assigneeID, &t.ReporterID, &t.Site,
		&t.CreatedAt, &t.UpdatedAt, &resolvedAt, &closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}

	t.Priority = models.TicketPriority(priority)
	t.Status = models.TicketStatus(status)
	t.AssigneeID = assigneeID.String
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	if closedAt.Valid {
		t.ClosedAt = &closedAt.Time
	}
	return &t, nil
}

// nullableTime maps nil times to SQL NULL.
func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
