// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package models

import "time"

// AttendanceRecord represents one person's presence on one day. A record is
// opened by check-in and closed by check-out; WorkedMinutes is computed when
// the record closes.
type AttendanceRecord struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	PersonID      string     `json:"person_id"`
	Site          string     `json:"site"`
	Day           string     `json:"day"` // YYYY-MM-DD, tenant-local
	CheckIn       time.Time  `json:"check_in"`
	CheckOut      *time.Time `json:"check_out,omitempty"`
	WorkedMinutes int        `json:"worked_minutes"`
	Source        string     `json:"source"` // api, kiosk, import
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Open reports whether the record has no check-out yet.
func (r *AttendanceRecord) Open() bool {
	return r.CheckOut == nil
}

// CheckInRequest is the payload for POST /attendance/check-in.
type CheckInRequest struct {
	PersonID string `json:"person_id" validate:"required"`
	Site     string `json:"site" validate:"required,max=100"`
	Source   string `json:"source" validate:"omitempty,oneof=api kiosk import"`
}

// CheckOutRequest is the payload for POST /attendance/check-out.
type CheckOutRequest struct {
	PersonID string `json:"person_id" validate:"required"`
}

// AttendanceFilter narrows attendance list queries.
type AttendanceFilter struct {
	PersonID string
	Site     string
	Day      string // YYYY-MM-DD
	From     string
	To       string
	Page     int
	Limit    int
}
