// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package websocket

import (
	"github.com/tomtom215/custodia/internal/models"
)

// TicketEventData is sent with ticket_created and ticket_updated.
type TicketEventData struct {
	TicketID string `json:"ticket_id"`
	Number   int64  `json:"number"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Title    string `json:"title"`
	Assignee string `json:"assignee,omitempty"`
}

// BroadcastTicketCreated notifies a tenant's clients of a new ticket.
func (h *Hub) BroadcastTicketCreated(ticket *models.Ticket) {
	h.Broadcast(ticket.TenantID, MessageTypeTicketCreated, ticketData(ticket))
}

// BroadcastTicketUpdated notifies a tenant's clients of a ticket
// transition, assignment, or comment.
func (h *Hub) BroadcastTicketUpdated(ticket *models.Ticket) {
	h.Broadcast(ticket.TenantID, MessageTypeTicketUpdated, ticketData(ticket))
}

func ticketData(ticket *models.Ticket) TicketEventData {
	return TicketEventData{
		TicketID: ticket.ID,
		Number:   ticket.Number,
		Status:   string(ticket.Status),
		Priority: string(ticket.Priority),
		Title:    ticket.Title,
		Assignee: ticket.AssigneeID,
	}
}

// AttendanceEventData is sent with attendance_checkin and
// attendance_checkout.
type AttendanceEventData struct {
	RecordID string `json:"record_id"`
	PersonID string `json:"person_id"`
	Site     string `json:"site"`
	Day      string `json:"day"`
}

// BroadcastCheckIn notifies a tenant's clients of a check-in.
func (h *Hub) BroadcastCheckIn(record *models.AttendanceRecord) {
	h.Broadcast(record.TenantID, MessageTypeAttendanceCheckIn, attendanceData(record))
}

// BroadcastCheckOut notifies a tenant's clients of a check-out.
func (h *Hub) BroadcastCheckOut(record *models.AttendanceRecord) {
	h.Broadcast(record.TenantID, MessageTypeAttendanceCheckOut, attendanceData(record))
}

func attendanceData(record *models.AttendanceRecord) AttendanceEventData {
	return AttendanceEventData{
		RecordID: record.ID,
		PersonID: record.PersonID,
		Site:     record.Site,
		Day:      record.Day,
	}
}

// ReportReadyData is sent with report_ready once a queued report has
// materialized.
type ReportReadyData struct {
	ReportID string `json:"report_id"`
	Type     string `json:"type"`
	Status   string `json:"status"`
}

// BroadcastReportReady notifies a tenant's clients that a report
// finished, successfully or not.
func (h *Hub) BroadcastReportReady(report *models.Report) {
	h.Broadcast(report.TenantID, MessageTypeReportReady, ReportReadyData{
		ReportID: report.ID,
		Type:     string(report.Type),
		Status:   string(report.Status),
	})
}
