// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/custodia/internal/logging"
)

// newTestTransport returns an in-process pubsub and a router configured
// with a tight retry budget so failure paths run fast.
func newTestTransport(t *testing.T) (*gochannel.GoChannel, *Router) {
	t.Helper()

	logger := watermill.NopLogger{}
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, logger)

	cfg := RouterConfig{
		CloseTimeout:         5 * time.Second,
		RetryMaxRetries:      2,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     10 * time.Millisecond,
		RetryMultiplier:      2.0,
		PoisonQueueTopic:     TopicFor(QueuePoison),
	}

	router, err := NewRouter(&cfg, pubsub, logger)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}

	t.Cleanup(func() {
		_ = router.Close()
		_ = pubsub.Close()
	})
	return pubsub, router
}

func runRouter(t *testing.T, router *Router) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = router.Run(ctx)
	}()

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
}

func TestRouterDeliversTask(t *testing.T) {
	pubsub, router := newTestTransport(t)

	received := make(chan *Task, 1)
	contexts := make(chan context.Context, 1)
	_, err := router.AddQueueHandler(QueueEmail, pubsub, func(ctx context.Context, task *Task) error {
		received <- task
		contexts <- ctx
		return nil
	})
	if err != nil {
		t.Fatalf("AddQueueHandler failed: %v", err)
	}

	runRouter(t, router)

	publisher := NewPublisherFromWatermill(pubsub, watermill.NopLogger{})
	task, err := NewTask("email.generic", "acme", "corr-42", EmailPayload{
		To:      []string{"ops@example.com"},
		Subject: "hello",
	})
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if err := publisher.Enqueue(context.Background(), QueueEmail, task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	select {
	case got := <-received:
		if got.ID != task.ID || got.Type != "email.generic" {
			t.Errorf("unexpected task: %+v", got)
		}
		ctx := <-contexts
		if logging.CorrelationIDFromContext(ctx) != "corr-42" {
			t.Error("expected correlation ID restored in handler context")
		}
		if logging.TenantIDFromContext(ctx) != "acme" {
			t.Error("expected tenant ID restored in handler context")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("task never delivered")
	}
}

func TestRouterPoisonsExhaustedTask(t *testing.T) {
	pubsub, router := newTestTransport(t)

	// Subscribe to the poison topic before anything fails; the
	// in-process pubsub does not replay history.
	poisoned, err := pubsub.Subscribe(context.Background(), TopicFor(QueuePoison))
	if err != nil {
		t.Fatalf("poison subscribe failed: %v", err)
	}

	handlerErr := errors.New("smtp unreachable")
	attempts := 0
	_, err = router.AddQueueHandler(QueueEmail, pubsub, func(ctx context.Context, task *Task) error {
		attempts++
		return handlerErr
	})
	if err != nil {
		t.Fatalf("AddQueueHandler failed: %v", err)
	}

	runRouter(t, router)

	publisher := NewPublisherFromWatermill(pubsub, watermill.NopLogger{})
	task, err := NewTask("email.generic", "acme", "", EmailPayload{
		To:      []string{"ops@example.com"},
		Subject: "doomed",
	})
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if err := publisher.Enqueue(context.Background(), QueueEmail, task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	var msg *message.Message
	select {
	case msg = <-poisoned:
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("task never reached the poison topic")
	}

	// Initial attempt plus retries.
	if attempts < 3 {
		t.Errorf("expected at least 3 attempts, got %d", attempts)
	}

	entry := EntryFromMessage(msg, 4096)
	if entry.Queue != QueueEmail {
		t.Errorf("expected queue %s, got %s", QueueEmail, entry.Queue)
	}
	if entry.Reason == "" {
		t.Error("expected poison reason recorded")
	}
	if got := msg.Metadata.Get(middleware.ReasonForPoisonedKey); got == "" {
		t.Error("expected reason metadata on poisoned message")
	}
}

func TestAddQueueHandlerRejectsUnknownQueue(t *testing.T) {
	pubsub, router := newTestTransport(t)

	if _, err := router.AddQueueHandler("celery", pubsub, func(ctx context.Context, task *Task) error {
		return nil
	}); err == nil {
		t.Error("expected error for unknown queue")
	}
}
