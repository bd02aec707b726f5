// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package models

import "time"

// JournalEntry is a site journal (shift notes) record. Entries are immutable
// after creation; an edit creates a new revision pointing at the original.
type JournalEntry struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Site      string    `json:"site"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags,omitempty"`
	Revision  int       `json:"revision"`            // 1 for originals
	ParentID  string    `json:"parent_id,omitempty"` // original entry for revisions
	CreatedAt time.Time `json:"created_at"`
}

// JournalCreateRequest is the payload for appending a journal entry.
type JournalCreateRequest struct {
	Site string   `json:"site" validate:"required,max=100"`
	Body string   `json:"body" validate:"required,max=20000"`
	Tags []string `json:"tags" validate:"omitempty,max=10,dive,max=50"`
}

// JournalReviseRequest creates a new revision of an existing entry.
type JournalReviseRequest struct {
	Body string   `json:"body" validate:"required,max=20000"`
	Tags []string `json:"tags" validate:"omitempty,max=10,dive,max=50"`
}

// JournalFilter narrows journal list queries.
type JournalFilter struct {
	Site     string
	AuthorID string
	Tag      string
	From     string // YYYY-MM-DD
	To       string
	Page     int
	Limit    int
}
