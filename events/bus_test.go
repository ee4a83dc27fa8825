package events

import (
	"testing"
	"time"
)

func TestBusPublishMatchesFilter(t *testing.T) {
	bus := NewBus(4)

	_, ch := bus.Subscribe(Filter{Protocol: "https://example.com/chat"})
	defer bus.Unsubscribe("")

	bus.Publish(&Event{
		Kind:     KindRecordWritten,
		Tenant:   "did:example:alice",
		RecordID: "bafyrec1",
		Protocol: "https://example.com/other",
	})

	select {
	case <-ch:
		t.Fatal("unexpected delivery for non-matching protocol")
	case <-time.After(20 * time.Millisecond):
	}

	bus.Publish(&Event{
		Kind:     KindRecordWritten,
		Tenant:   "did:example:alice",
		RecordID: "bafyrec2",
		Protocol: "https://example.com/chat",
	})

	select {
	case e := <-ch:
		if e.RecordID != "bafyrec2" {
			t.Fatalf("got recordId %q, want bafyrec2", e.RecordID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected delivery for matching protocol")
	}
}

func TestBusRejectsInvalidEvent(t *testing.T) {
	bus := NewBus(1)
	bus.Publish(&Event{})

	if got := bus.Snapshot().PublishedTotal; got != 0 {
		t.Fatalf("published count = %d, want 0 for invalid event", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(1)
	id, ch := bus.Subscribe()
	bus.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after Unsubscribe")
	}

	if got := bus.SubscriberCount(); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}
}
