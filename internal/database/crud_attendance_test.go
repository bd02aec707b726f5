// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/custodia/internal/models"
)

func TestAttendanceCheckInCheckOut(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	person := testPerson("E-100", "Jane Doe")
	if err := db.CreatePerson(ctx, "acme", person); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}

	checkIn := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	record, err := db.CheckIn(ctx, "acme", &models.CheckInRequest{
		PersonID: person.ID,
		Site:     "berlin-hq",
	}, checkIn)
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if !record.Open() {
		t.Error("expected open record after check-in")
	}
	if record.Day != "2026-08-24" {
		t.Errorf("expected day 2026-08-24, got %q", record.Day)
	}
	if record.Source != "api" {
		t.Errorf("expected default source api, got %q", record.Source)
	}

	// Double check-in is rejected.
	_, err = db.CheckIn(ctx, "acme", &models.CheckInRequest{
		PersonID: person.ID,
		Site:     "berlin-hq",
	}, checkIn.Add(time.Hour))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for double check-in, got %v", err)
	}

	// Check-out closes the record and computes worked minutes.
	closed, err := db.CheckOut(ctx, "acme", person.ID, checkIn.Add(8*time.Hour+30*time.Minute))
	if err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}
	if closed.Open() {
		t.Error("expected closed record after check-out")
	}
	if closed.WorkedMinutes != 510 {
		t.Errorf("expected 510 worked minutes, got %d", closed.WorkedMinutes)
	}

	// Second check-out has nothing to close.
	_, err = db.CheckOut(ctx, "acme", person.ID, checkIn.Add(9*time.Hour))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for check-out without open record, got %v", err)
	}

	// A fresh check-in on the same day is allowed after checkout (split shift).
	if _, err := db.CheckIn(ctx, "acme", &models.CheckInRequest{
		PersonID: person.ID,
		Site:     "berlin-hq",
	}, checkIn.Add(10*time.Hour)); err != nil {
		t.Fatalf("second shift CheckIn failed: %v", err)
	}
}

func TestCheckInUnknownPerson(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.CheckIn(context.Background(), "acme", &models.CheckInRequest{
		PersonID: "00000000-0000-0000-0000-000000000000",
		Site:     "berlin-hq",
	}, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown person, got %v", err)
	}
}

func TestListAttendanceAndSummary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var personIDs []string
	for _, code := range []string{"E-200", "E-201"} {
		p := testPerson(code, "Worker "+code)
		if err := db.CreatePerson(ctx, "acme", p); err != nil {
			t.Fatalf("CreatePerson failed: %v", err)
		}
		personIDs = append(personIDs, p.ID)
	}

	// Two closed days for the first person, one for the second.
	base := time.Date(2026, 8, 17, 9, 0, 0, 0, time.UTC)
	shifts := []struct {
		person string
		start  time.Time
		hours  int
	}{
		{personIDs[0], base, 8},
		{personIDs[0], base.AddDate(0, 0, 1), 6},
		{personIDs[1], base, 4},
	}
	for _, s := range shifts {
		if _, err := db.CheckIn(ctx, "acme", &models.CheckInRequest{
			PersonID: s.person,
			Site:     "berlin-hq",
		}, s.start); err != nil {
			t.Fatalf("CheckIn failed: %v", err)
		}
		if _, err := db.CheckOut(ctx, "acme", s.person, s.start.Add(time.Duration(s.hours)*time.Hour)); err != nil {
			t.Fatalf("CheckOut failed: %v", err)
		}
	}

	records, total, err := db.ListAttendance(ctx, "acme", models.AttendanceFilter{Day: "2026-08-17"})
	if err != nil {
		t.Fatalf("ListAttendance failed: %v", err)
	}
	if total != 2 || len(records) != 2 {
		t.Errorf("expected 2 records on 2026-08-17, got %d", total)
	}

	records, total, err = db.ListAttendance(ctx, "acme", models.AttendanceFilter{PersonID: personIDs[0]})
	if err != nil {
		t.Fatalf("ListAttendance by person failed: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 records for first person, got %d", total)
	}
	for _, r := range records {
		if r.Open() {
			t.Error("expected all records closed")
		}
	}

	summary, err := db.SummarizeAttendance(ctx, "acme", "2026-08-17", "2026-08-23")
	if err != nil {
		t.Fatalf("SummarizeAttendance failed: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("expected 2 summary rows, got %d", len(summary))
	}
	byPerson := map[string]AttendanceSummaryRow{}
	for _, row := range summary {
		byPerson[row.PersonID] = row
	}
	if got := byPerson[personIDs[0]]; got.Days != 2 || got.WorkedMinutes != 14*60 {
		t.Errorf("unexpected summary for first person: %+v", got)
	}
	if got := byPerson[personIDs[1]]; got.Days != 1 || got.WorkedMinutes != 4*60 {
		t.Errorf("unexpected summary for second person: %+v", got)
	}
}
