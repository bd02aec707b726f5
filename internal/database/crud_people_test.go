// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"strings"
	"testing"

	"github.com/tomtom215/custodia/internal/models"
)

func testPerson(code, name string) *models.Person {
	return &models.Person{
		Code:        code,
		Name:        name,
		Email:       code + "@example.com",
		Phone:       "+49-170-1234567",
		BankAccount: "DE89 3704 0044 0532 0130 00",
		Role:        models.RoleStaff,
		Site:        "berlin-hq",
		Active:      true,
	}
}

func TestPersonEncryptedRoundTrip(t *testing.T) {
	db, _ := setupEncryptedTestDB(t)
	ctx := context.Background()

	person := testPerson("E-001", "Jane Doe")
	if err := db.CreatePerson(ctx, "acme", person); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}

	// The stored columns must be ciphertext, not plaintext.
	var storedPhone, storedBank string
	err := db.Conn().QueryRowContext(ctx,
		`SELECT phone, bank_account FROM people WHERE id = ?`, person.ID,
	).Scan(&storedPhone, &storedBank)
	if err != nil {
		t.Fatalf("raw column query failed: %v", err)
	}
	if !strings.HasPrefix(storedPhone, "vk1:") || !strings.HasPrefix(storedBank, "vk1:") {
		t.Errorf("expected versioned ciphertexts at rest, got %q / %q", storedPhone[:8], storedBank[:8])
	}
	if storedPhone == person.Phone {
		t.Error("phone stored in plaintext")
	}

	// Reads decrypt transparently.
	got, err := db.GetPerson(ctx, "acme", person.ID)
	if err != nil {
		t.Fatalf("GetPerson failed: %v", err)
	}
	if got.Phone != "+49-170-1234567" || got.BankAccount != "DE89 3704 0044 0532 0130 00" {
		t.Errorf("expected decrypted fields, got %q / %q", got.Phone, got.BankAccount)
	}
}

func TestPersonDuplicateCodeConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.CreatePerson(ctx, "acme", testPerson("E-001", "Jane Doe")); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}
	if err := db.CreatePerson(ctx, "acme", testPerson("E-001", "John Doe")); err == nil {
		t.Fatal("expected conflict for duplicate code")
	}
	// Same code in another tenant is fine.
	if err := db.CreatePerson(ctx, "globex", testPerson("E-001", "John Doe")); err != nil {
		t.Fatalf("cross-tenant CreatePerson failed: %v", err)
	}
}

func TestPersonUpdatePartial(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	person := testPerson("E-002", "Jane Doe")
	if err := db.CreatePerson(ctx, "acme", person); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}

	newSite := "munich-depot"
	inactive := false
	updated, err := db.UpdatePerson(ctx, "acme", person.ID, &models.PersonUpdateRequest{
		Site:   &newSite,
		Active: &inactive,
	})
	if err != nil {
		t.Fatalf("UpdatePerson failed: %v", err)
	}
	if updated.Site != "munich-depot" || updated.Active {
		t.Errorf("expected partial update applied, got %+v", updated)
	}
	if updated.Name != "Jane Doe" || updated.Phone != "+49-170-1234567" {
		t.Errorf("expected untouched fields preserved, got %+v", updated)
	}
}

func TestPersonTenantIsolation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	person := testPerson("E-003", "Jane Doe")
	if err := db.CreatePerson(ctx, "acme", person); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}

	// Another tenant cannot see or delete the row.
	if _, err := db.GetPerson(ctx, "globex", person.ID); err == nil {
		t.Fatal("expected cross-tenant get to fail")
	}
	if err := db.DeletePerson(ctx, "globex", person.ID); err == nil {
		t.Fatal("expected cross-tenant delete to fail")
	}

	people, total, err := db.ListPeople(ctx, "globex", models.PersonFilter{})
	if err != nil {
		t.Fatalf("ListPeople failed: %v", err)
	}
	if total != 0 || len(people) != 0 {
		t.Errorf("expected empty list for other tenant, got %d", total)
	}
}

func TestListPeopleFiltering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i, spec := range []struct {
		code, name, site string
		role             models.PersonRole
	}{
		{"E-010", "Alice Berg", "berlin-hq", models.RoleManager},
		{"E-011", "Bob Stein", "berlin-hq", models.RoleStaff},
		{"E-012", "Carol Voss", "munich-depot", models.RoleStaff},
	} {
		p := testPerson(spec.code, spec.name)
		p.Site = spec.site
		p.Role = spec.role
		if err := db.CreatePerson(ctx, "acme", p); err != nil {
			t.Fatalf("CreatePerson %d failed: %v", i, err)
		}
	}

	people, total, err := db.ListPeople(ctx, "acme", models.PersonFilter{Site: "berlin-hq"})
	if err != nil {
		t.Fatalf("ListPeople by site failed: %v", err)
	}
	if total != 2 || len(people) != 2 {
		t.Errorf("expected 2 berlin people, got %d", total)
	}

	people, total, err = db.ListPeople(ctx, "acme", models.PersonFilter{Search: "voss"})
	if err != nil {
		t.Fatalf("ListPeople by search failed: %v", err)
	}
	if total != 1 || people[0].Code != "E-012" {
		t.Errorf("expected Carol Voss, got total=%d", total)
	}

	// Pagination: page 2 of size 2 holds the last row (ordered by code).
	people, total, err = db.ListPeople(ctx, "acme", models.PersonFilter{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("ListPeople paginated failed: %v", err)
	}
	if total != 3 || len(people) != 1 || people[0].Code != "E-012" {
		t.Errorf("unexpected page 2: total=%d len=%d", total, len(people))
	}
}
