package inproc

import (
	"context"
	"testing"
	"time"

	"github.com/lonestarx1/orcgrid/pkg/bus"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("crew-1.broadcast", 4)
	defer unsub()

	msg := bus.NewMessage(bus.Broadcast, "agent-a", "hello")
	if err := b.Publish(context.Background(), "crew-1.broadcast", msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Payload != "hello" {
			t.Fatalf("Payload = %v, want hello", got.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("topic", 1)
	defer unsub()

	for i := 0; i < 5; i++ {
		_ = b.Publish(context.Background(), "topic", bus.NewMessage(bus.StatusUpdate, "a", i))
	}

	// Only one message should be buffered; Publish must never block.
	select {
	case <-ch:
	default:
		t.Fatal("expected at least one buffered message")
	}
}

func TestDirectOnlyReachesAddressedReceiver(t *testing.T) {
	b := New()
	chA, unsubA := b.Subscribe("crew-1.agent-a", 2)
	defer unsubA()
	chB, unsubB := b.Subscribe("crew-1.agent-b", 2)
	defer unsubB()

	msg := bus.NewMessage(bus.TaskRequest, "scheduler", "do-thing")
	if err := b.Direct(context.Background(), "crew-1", "agent-a", msg); err != nil {
		t.Fatalf("Direct: %v", err)
	}

	select {
	case <-chA:
	case <-time.After(time.Second):
		t.Fatal("expected agent-a to receive the direct message")
	}
	select {
	case <-chB:
		t.Fatal("agent-b should not have received the direct message")
	default:
	}
}

func TestDuplicateMessageIDNotRedelivered(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("topic", 4)
	defer unsub()

	msg := bus.NewMessage(bus.Broadcast, "a", "x")
	_ = b.Publish(context.Background(), "topic", msg)
	_ = b.Publish(context.Background(), "topic", msg)

	<-ch
	select {
	case <-ch:
		t.Fatal("duplicate message ID should not be redelivered")
	default:
	}

	if len(b.History()) != 2 {
		t.Fatalf("expected duplicate still recorded in history, got %d entries", len(b.History()))
	}
}
