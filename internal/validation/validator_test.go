// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package validation

import (
	"strings"
	"testing"
)

type checkInPayload struct {
	PersonID string `validate:"required"`
	Site     string `validate:"required,max=100"`
	Source   string `validate:"omitempty,oneof=api kiosk import"`
}

func TestValidateStructPasses(t *testing.T) {
	t.Parallel()

	payload := checkInPayload{PersonID: "p1", Site: "warehouse-a", Source: "kiosk"}
	if err := ValidateStruct(&payload); err != nil {
		t.Errorf("expected validation to pass, got: %v", err)
	}
}

func TestValidateStructRequired(t *testing.T) {
	t.Parallel()

	payload := checkInPayload{Site: "warehouse-a"}
	err := ValidateStruct(&payload)
	if err == nil {
		t.Fatal("expected validation error for missing PersonID")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR code, got %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "PersonID is required") {
		t.Errorf("expected required message, got %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "PersonID" {
		t.Errorf("expected field detail PersonID, got %v", apiErr.Details["field"])
	}
}

func TestValidateStructOneOf(t *testing.T) {
	t.Parallel()

	payload := checkInPayload{PersonID: "p1", Site: "warehouse-a", Source: "carrier-pigeon"}
	err := ValidateStruct(&payload)
	if err == nil {
		t.Fatal("expected validation error for invalid source")
	}
	if !strings.Contains(err.Error(), "must be one of") {
		t.Errorf("expected oneof message, got %q", err.Error())
	}
}

func TestValidateStructMultipleErrors(t *testing.T) {
	t.Parallel()

	payload := checkInPayload{Source: "fax"}
	err := ValidateStruct(&payload)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if len(err.Errors()) != 3 {
		t.Errorf("expected 3 errors, got %d", len(err.Errors()))
	}

	apiErr := err.ToAPIError()
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("expected fields detail for multiple errors")
	}
}

func TestValidateStructMaxLength(t *testing.T) {
	t.Parallel()

	payload := checkInPayload{PersonID: "p1", Site: strings.Repeat("x", 101)}
	err := ValidateStruct(&payload)
	if err == nil {
		t.Fatal("expected validation error for long site")
	}
	if !strings.Contains(err.Error(), "at most 100 characters") {
		t.Errorf("expected max length message, got %q", err.Error())
	}
}
