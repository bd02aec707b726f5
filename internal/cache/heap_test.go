// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMinHeapOrdersByTimestamp(t *testing.T) {
	h := NewMinHeap[string](0)
	base := time.Now()

	h.Push("c", "third", base.Add(3*time.Second))
	h.Push("a", "first", base.Add(1*time.Second))
	h.Push("b", "second", base.Add(2*time.Second))

	for _, want := range []string{"first", "second", "third"} {
		entry := h.Pop()
		if entry == nil || entry.Value != want {
			t.Fatalf("expected %q, got %+v", want, entry)
		}
	}
	if h.Pop() != nil {
		t.Error("expected empty heap")
	}
}

func TestMinHeapEvictsOldestAtCapacity(t *testing.T) {
	h := NewMinHeap[int](2)
	base := time.Now()

	h.Push("a", 1, base)
	h.Push("b", 2, base.Add(time.Second))
	evicted := h.Push("c", 3, base.Add(2*time.Second))

	if evicted == nil || evicted.Key != "a" {
		t.Fatalf("expected oldest evicted, got %+v", evicted)
	}
	if h.Len() != 2 {
		t.Errorf("unexpected length %d", h.Len())
	}
	if h.Get("a") != nil {
		t.Error("evicted entry still reachable by key")
	}
}

func TestMinHeapPushUpdatesExistingKey(t *testing.T) {
	h := NewMinHeap[int](0)
	base := time.Now()

	h.Push("a", 1, base.Add(time.Hour))
	h.Push("b", 2, base)
	h.Push("a", 10, base.Add(-time.Hour))

	if h.Len() != 2 {
		t.Fatalf("duplicate key grew the heap: %d", h.Len())
	}
	oldest := h.Peek()
	if oldest == nil || oldest.Key != "a" || oldest.Value != 10 {
		t.Errorf("update did not reorder: %+v", oldest)
	}
}

func TestMinHeapPopBefore(t *testing.T) {
	h := NewMinHeap[int](0)
	base := time.Now()

	for i := 0; i < 5; i++ {
		h.Push(fmt.Sprintf("k%d", i), i, base.Add(time.Duration(i)*time.Minute))
	}

	expired := h.PopBefore(base.Add(2*time.Minute + time.Second))
	if len(expired) != 3 {
		t.Fatalf("expected 3 expired, got %d", len(expired))
	}
	if h.Len() != 2 {
		t.Errorf("unexpected remaining %d", h.Len())
	}
	for i, entry := range expired {
		if entry.Value != i {
			t.Errorf("expired out of order at %d: %+v", i, entry)
		}
	}
}

func TestMinHeapRemoveByKey(t *testing.T) {
	h := NewMinHeap[int](0)
	base := time.Now()

	h.Push("a", 1, base)
	h.Push("b", 2, base.Add(time.Second))
	h.Push("c", 3, base.Add(2*time.Second))

	if removed := h.Remove("b"); removed == nil || removed.Value != 2 {
		t.Fatalf("unexpected removal result: %+v", removed)
	}
	if h.Remove("b") != nil {
		t.Error("second removal should miss")
	}

	if first := h.Pop(); first == nil || first.Key != "a" {
		t.Errorf("heap order broken after removal: %+v", first)
	}
	if second := h.Pop(); second == nil || second.Key != "c" {
		t.Errorf("heap order broken after removal: %+v", second)
	}
}

func TestMinHeapConcurrentPush(t *testing.T) {
	h := NewMinHeap[int](100)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h.Push(fmt.Sprintf("g%d-i%d", g, i), i, time.Now())
			}
		}(g)
	}
	wg.Wait()

	if h.Len() != 100 {
		t.Errorf("expected capacity-bounded heap, got %d", h.Len())
	}
}
