// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"errors"
	"testing"
)

type captureSender struct {
	sent    []*EmailPayload
	tenants []string
	err     error
}

func (s *captureSender) Send(ctx context.Context, tenantID string, email *EmailPayload) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, email)
	s.tenants = append(s.tenants, tenantID)
	return nil
}

func TestEmailHandlerDelivers(t *testing.T) {
	sender := &captureSender{}
	handler := NewEmailHandler(sender)

	task, err := NewTask(TaskEmailTicketAssigned, "acme", "", EmailPayload{
		To:      []string{"staff@example.com"},
		Subject: "Ticket #41 assigned to you",
		Body:    "See /helpdesk/tickets/41",
	})
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}

	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	if sender.tenants[0] != "acme" {
		t.Errorf("expected tenant acme, got %s", sender.tenants[0])
	}
	if sender.sent[0].Subject != "Ticket #41 assigned to you" {
		t.Errorf("unexpected subject: %s", sender.sent[0].Subject)
	}
}

func TestEmailHandlerRejectsInvalidPayload(t *testing.T) {
	sender := &captureSender{}
	handler := NewEmailHandler(sender)

	tests := []struct {
		name    string
		payload EmailPayload
	}{
		{"no recipients", EmailPayload{Subject: "s"}},
		{"bad address", EmailPayload{To: []string{"not-an-address"}, Subject: "s"}},
		{"no subject", EmailPayload{To: []string{"a@b.com"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := NewTask(TaskEmailGeneric, "acme", "", tt.payload)
			if err != nil {
				t.Fatalf("NewTask failed: %v", err)
			}
			if err := handler(context.Background(), task); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if len(sender.sent) != 0 {
		t.Errorf("expected no sends, got %d", len(sender.sent))
	}
}

func TestEmailHandlerPropagatesSendFailure(t *testing.T) {
	sendErr := errors.New("relay down")
	handler := NewEmailHandler(&captureSender{err: sendErr})

	task, err := NewTask(TaskEmailGeneric, "acme", "", EmailPayload{
		To:      []string{"a@b.com"},
		Subject: "s",
	})
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if err := handler(context.Background(), task); !errors.Is(err, sendErr) {
		t.Errorf("expected send error, got %v", err)
	}
}

func TestEmailHandlerRejectsMissingPayload(t *testing.T) {
	handler := NewEmailHandler(&captureSender{})

	task, err := NewTask(TaskEmailGeneric, "acme", "", nil)
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if err := handler(context.Background(), task); err == nil {
		t.Error("expected error for missing payload")
	}
}
