// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

func TestWebhookHandlerDeliversEnvelope(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %s", ct)
		}
		if r.Header.Get("X-Custom") != "yes" {
			t.Error("custom header not forwarded")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("invalid body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	task, err := NewTask(TaskWebhookDeliver, "acme", "corr-1", &WebhookPayload{
		URL:     srv.URL,
		Event:   "ticket.created",
		Headers: map[string]string{"X-Custom": "yes"},
		Body:    json.RawMessage(`{"ticket_id":42}`),
	})
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}

	handler := NewWebhookHandler(srv.Client())
	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	if received["event"] != "ticket.created" {
		t.Errorf("unexpected event: %v", received["event"])
	}
	if received["tenant_id"] != "acme" {
		t.Errorf("unexpected tenant: %v", received["tenant_id"])
	}
	if data, ok := received["data"].(map[string]interface{}); !ok || data["ticket_id"] != float64(42) {
		t.Errorf("unexpected data: %v", received["data"])
	}
}

func TestWebhookHandlerErrorsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	task, err := NewTask(TaskWebhookDeliver, "acme", "", &WebhookPayload{
		URL:   srv.URL,
		Event: "ticket.created",
	})
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}

	handler := NewWebhookHandler(srv.Client())
	if err := handler(context.Background(), task); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestWebhookPayloadValidate(t *testing.T) {
	cases := []struct {
		name    string
		payload WebhookPayload
		wantErr bool
	}{
		{"valid", WebhookPayload{URL: "https://hooks.example.com/x", Event: "e"}, false},
		{"bad scheme", WebhookPayload{URL: "ftp://example.com", Event: "e"}, true},
		{"missing event", WebhookPayload{URL: "https://example.com"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
