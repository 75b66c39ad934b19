package events

import (
	"testing"
	"time"
)

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	b := New()
	a := b.Subscribe(4)
	c := b.Subscribe(4)

	b.Publish(Event{Source: SourceAgent, Kind: KindTurnStart})

	for i, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Kind != KindTurnStart {
				t.Errorf("subscriber %d got kind %q", i, e.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestBus_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New()
	ch := b.Subscribe(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Publish(Event{Kind: "first"})
		b.Publish(Event{Kind: "second"}) // buffer full, must not block
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	e := <-ch
	if e.Kind != "first" {
		t.Errorf("got %q, want first", e.Kind)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected second event %q", e.Kind)
	default:
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()
	ch := b.Subscribe(4)
	if n := b.SubscriberCount(); n != 1 {
		t.Fatalf("count = %d", n)
	}

	b.Unsubscribe(ch)
	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("count after unsubscribe = %d", n)
	}
	if _, open := <-ch; open {
		t.Error("channel not closed on unsubscribe")
	}

	// Double unsubscribe is a no-op, not a panic.
	b.Unsubscribe(ch)
}

func TestBus_NilIsSafe(t *testing.T) {
	var b *Bus
	b.Publish(Event{Kind: "ignored"})
	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("nil bus count = %d", n)
	}
}
