// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Queue names. Each queue maps to its own JetStream subject and durable
// consumer, so a slow queue never starves the others.
const (
	QueueCritical     = "critical"
	QueueHighPriority = "high_priority"
	QueueEmail        = "email"
	QueueReports      = "reports"
	QueueExternalAPI  = "external_api"
	QueueMaintenance  = "maintenance"
)

// AllQueues lists every queue in routing order.
var AllQueues = []string{
	QueueCritical,
	QueueHighPriority,
	QueueEmail,
	QueueReports,
	QueueExternalAPI,
	QueueMaintenance,
}

// QueuePoison receives tasks that exhausted their retry budget. It is
// not a work queue; only the poison log consumes it.
const QueuePoison = "poison"

// topicPrefix namespaces all task subjects under one stream.
const topicPrefix = "tasks."

// TopicFor returns the NATS subject for a queue.
func TopicFor(queue string) string {
	return topicPrefix + queue
}

// QueueFromTopic recovers the queue name from a subject. Returns the
// subject unchanged when it does not carry the task prefix.
func QueueFromTopic(topic string) string {
	if len(topic) > len(topicPrefix) && topic[:len(topicPrefix)] == topicPrefix {
		return topic[len(topicPrefix):]
	}
	return topic
}

// IsValidQueue checks whether the queue name is known.
func IsValidQueue(queue string) bool {
	for _, q := range AllQueues {
		if q == queue {
			return true
		}
	}
	return false
}

// Task is the envelope carried on every queue. Payload stays opaque to
// the pipeline; handlers decode it into their own request types.
type Task struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	TenantID      string          `json:"tenant_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// NewTask builds an envelope with a fresh ID and marshals the payload.
func NewTask(taskType, tenantID, correlationID string, payload interface{}) (*Task, error) {
	if taskType == "" {
		return nil, fmt.Errorf("task type required")
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		raw = data
	}

	return &Task{
		ID:            uuid.New().String(),
		Type:          taskType,
		TenantID:      tenantID,
		CorrelationID: correlationID,
		EnqueuedAt:    time.Now().UTC(),
		Payload:       raw,
	}, nil
}

// DecodePayload unmarshals the task payload into dst.
func (t *Task) DecodePayload(dst interface{}) error {
	if len(t.Payload) == 0 {
		return fmt.Errorf("task %s has no payload", t.ID)
	}
	if err := json.Unmarshal(t.Payload, dst); err != nil {
		return fmt.Errorf("decode payload for task %s: %w", t.ID, err)
	}
	return nil
}

// Validate checks the envelope before it goes on the wire.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task ID required")
	}
	if t.Type == "" {
		return fmt.Errorf("task type required")
	}
	return nil
}

// Serializer handles task encoding for NATS messages.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts a task to JSON bytes.
func (s *Serializer) Marshal(task *Task) ([]byte, error) {
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("validate task: %w", err)
	}
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	return data, nil
}

// Unmarshal converts JSON bytes to a task.
func (s *Serializer) Unmarshal(data []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("validate task: %w", err)
	}
	return &task, nil
}

// Message wraps the task in a Watermill message. The task ID becomes
// the message UUID so JetStream deduplication tracks it.
func (s *Serializer) Message(task *Task) (*message.Message, error) {
	data, err := s.Marshal(task)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(task.ID, data)
	msg.Metadata.Set("task_type", task.Type)
	if task.TenantID != "" {
		msg.Metadata.Set("tenant_id", task.TenantID)
	}
	if task.CorrelationID != "" {
		msg.Metadata.Set("correlation_id", task.CorrelationID)
	}
	return msg, nil
}
