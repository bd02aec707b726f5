// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"testing"
)

func TestTopicMapping(t *testing.T) {
	tests := []struct {
		queue string
		topic string
	}{
		{QueueCritical, "tasks.critical"},
		{QueueHighPriority, "tasks.high_priority"},
		{QueueEmail, "tasks.email"},
		{QueueReports, "tasks.reports"},
		{QueueExternalAPI, "tasks.external_api"},
		{QueueMaintenance, "tasks.maintenance"},
		{QueuePoison, "tasks.poison"},
	}

	for _, tt := range tests {
		if got := TopicFor(tt.queue); got != tt.topic {
			t.Errorf("TopicFor(%s) = %s, want %s", tt.queue, got, tt.topic)
		}
		if got := QueueFromTopic(tt.topic); got != tt.queue {
			t.Errorf("QueueFromTopic(%s) = %s, want %s", tt.topic, got, tt.queue)
		}
	}
}

func TestIsValidQueue(t *testing.T) {
	for _, q := range AllQueues {
		if !IsValidQueue(q) {
			t.Errorf("expected %s valid", q)
		}
	}
	// The poison queue is not a work queue.
	if IsValidQueue(QueuePoison) {
		t.Error("expected poison queue rejected as work queue")
	}
	if IsValidQueue("celery") {
		t.Error("expected unknown queue rejected")
	}
}

func TestTaskRoundTrip(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	task, err := NewTask("email.generic", "acme", "corr-1", payload{Name: "weekly digest"})
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if task.ID == "" {
		t.Fatal("expected generated task ID")
	}

	serializer := NewSerializer()
	data, err := serializer.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	decoded, err := serializer.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.ID != task.ID || decoded.Type != task.Type || decoded.TenantID != "acme" {
		t.Errorf("envelope mismatch: %+v", decoded)
	}

	var p payload
	if err := decoded.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if p.Name != "weekly digest" {
		t.Errorf("payload mismatch: %+v", p)
	}
}

func TestNewTaskRequiresType(t *testing.T) {
	if _, err := NewTask("", "acme", "", nil); err == nil {
		t.Error("expected error for empty task type")
	}
}

func TestSerializerRejectsGarbage(t *testing.T) {
	serializer := NewSerializer()

	if _, err := serializer.Unmarshal([]byte("not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
	// Valid JSON but no envelope fields.
	if _, err := serializer.Unmarshal([]byte("{}")); err == nil {
		t.Error("expected error for empty envelope")
	}
}

func TestSerializerMessageMetadata(t *testing.T) {
	task, err := NewTask("maintenance.sweep", "acme", "corr-9", nil)
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}

	msg, err := NewSerializer().Message(task)
	if err != nil {
		t.Fatalf("Message failed: %v", err)
	}

	if msg.UUID != task.ID {
		t.Errorf("expected message UUID %s, got %s", task.ID, msg.UUID)
	}
	if got := msg.Metadata.Get("task_type"); got != "maintenance.sweep" {
		t.Errorf("task_type metadata = %s", got)
	}
	if got := msg.Metadata.Get("tenant_id"); got != "acme" {
		t.Errorf("tenant_id metadata = %s", got)
	}
	if got := msg.Metadata.Get("correlation_id"); got != "corr-9" {
		t.Errorf("correlation_id metadata = %s", got)
	}
}
