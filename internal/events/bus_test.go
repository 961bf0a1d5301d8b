/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlanComputed)

	bus.Publish(EventPlanComputed, Payload{"run_id": "r1"})

	select {
	case payload := <-sub:
		if payload["run_id"] != "r1" {
			t.Fatalf("unexpected payload: %v", payload)
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestPublishDoesNotCrossTypes(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlanFailed)

	bus.Publish(EventPlanComputed, Payload{"run_id": "r1"})

	select {
	case payload := <-sub:
		t.Fatalf("unexpected delivery: %v", payload)
	default:
	}
}

func TestPublishSkipsFullSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventHealth)

	// Fill the buffer and keep publishing; the bus must not block.
	for i := 0; i < 20; i++ {
		bus.Publish(EventHealth, Payload{"seq": i})
	}

	if got := len(sub); got != cap(sub) {
		t.Fatalf("expected a full buffer of %d, got %d", cap(sub), got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlanExported)
	bus.Unsubscribe(EventPlanExported, sub)

	if _, open := <-sub; open {
		t.Fatal("expected channel to be closed")
	}

	// Publishing after unsubscribe must be a no-op, not a panic.
	bus.Publish(EventPlanExported, Payload{})
}

func TestValid(t *testing.T) {
	for _, known := range Types() {
		if !Valid(known) {
			t.Errorf("%s should be valid", known)
		}
	}
	if Valid(EventType("now_playing")) {
		t.Error("unknown type should not validate")
	}
}
