// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package models

import "time"

// PersonRole is the workforce role assigned to a person within a tenant.
type PersonRole string

const (
	RoleAdmin   PersonRole = "admin"
	RoleManager PersonRole = "manager"
	RoleStaff   PersonRole = "staff"
)

// IsValidPersonRole checks if a role is one of the known workforce roles.
func IsValidPersonRole(role PersonRole) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

// Person represents a workforce member in the registry.
//
// Phone and BankAccount are encrypted at rest; the store transparently
// encrypts on write and decrypts on read, so handlers only ever see
// plaintext. Code is unique per tenant and used on badges and rosters.
type Person struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	BankAccount string     `json:"bank_account,omitempty"`
	Role        PersonRole `json:"role"`
	Site        string     `json:"site"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PersonCreateRequest is the payload for creating a person.
type PersonCreateRequest struct {
	Code        string     `json:"code" validate:"required,max=32"`
	Name        string     `json:"name" validate:"required,max=200"`
	Email       string     `json:"email" validate:"required,email"`
	Phone       string     `json:"phone" validate:"omitempty,max=32"`
	BankAccount string     `json:"bank_account" validate:"omitempty,max=64"`
	Role        PersonRole `json:"role" validate:"required,oneof=admin manager staff"`
	Site        string     `json:"site" validate:"required,max=100"`
}

// PersonUpdateRequest is the payload for updating a person. Nil fields are
// left unchanged.
type PersonUpdateRequest struct {
	Name        *string     `json:"name" validate:"omitempty,max=200"`
	Email       *string     `json:"email" validate:"omitempty,email"`
	Phone       *string     `json:"phone" validate:"omitempty,max=32"`
	BankAccount *string     `json:"bank_account" validate:"omitempty,max=64"`
	Role        *PersonRole `json:"role" validate:"omitempty,oneof=admin manager staff"`
	Site        *string     `json:"site" validate:"omitempty,max=100"`
	Active      *bool       `json:"active"`
}

// PersonFilter narrows person list queries.
type PersonFilter struct {
	Site   string
	Role   PersonRole
	Active *bool
	Search string // matches code or name
	Page   int
	Limit  int
}
