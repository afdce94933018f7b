// Package inproc implements bus.DirectBus entirely in process memory,
// generalizing the non-blocking fan-out pub/sub bus used by team
// orchestration to typed messages and receiver-addressed delivery.
package inproc

import (
	"context"
	"sync"

	"github.com/lonestarx1/orcgrid/pkg/bus"
)

const recentlySeenCap = 4096

// Bus is an in-process, non-blocking pub/sub implementation of
// bus.DirectBus. Publish never blocks on a slow subscriber: if a
// subscriber's channel is full, the message is dropped for that
// subscriber only. Safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan bus.Message
	history     []bus.Message
	seen        map[string]struct{}
	seenOrder   []string
}

// New creates an empty in-process bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan bus.Message),
		seen:        make(map[string]struct{}),
	}
}

// Publish sends msg to every subscriber of channel. Duplicate message
// IDs (e.g. redelivered after a retry) are tolerated: a duplicate is
// still recorded in history but is not redelivered to subscribers.
func (b *Bus) Publish(ctx context.Context, channel string, msg bus.Message) error {
	return b.publish(channel, msg)
}

// Direct sends msg only to subscribers of channel+"."+receiverID.
func (b *Bus) Direct(ctx context.Context, channel, receiverID string, msg bus.Message) error {
	msg.ReceiverID = receiverID
	return b.publish(channel+"."+receiverID, msg)
}

func (b *Bus) publish(channel string, msg bus.Message) error {
	b.mu.Lock()
	b.history = append(b.history, msg)
	if msg.ID != "" {
		if _, dup := b.seen[msg.ID]; dup {
			b.mu.Unlock()
			return nil
		}
		b.markSeen(msg.ID)
	}
	subs := make([]chan bus.Message, len(b.subscribers[channel]))
	copy(subs, b.subscribers[channel])
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// markSeen must be called with b.mu held.
func (b *Bus) markSeen(id string) {
	b.seen[id] = struct{}{}
	b.seenOrder = append(b.seenOrder, id)
	if len(b.seenOrder) > recentlySeenCap {
		oldest := b.seenOrder[0]
		b.seenOrder = b.seenOrder[1:]
		delete(b.seen, oldest)
	}
}

// Subscribe registers a channel to receive messages published on
// name. Returns a receive-only channel and an unsubscribe function.
func (b *Bus) Subscribe(name string, bufferSize int) (<-chan bus.Message, func()) {
	ch := make(chan bus.Message, bufferSize)

	b.mu.Lock()
	b.subscribers[name] = append(b.subscribers[name], ch)
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[name]
		for i, s := range subs {
			if s == ch {
				b.subscribers[name] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}

	return ch, unsub
}

// History returns a copy of every message ever published, in order.
func (b *Bus) History() []bus.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cp := make([]bus.Message, len(b.history))
	copy(cp, b.history)
	return cp
}
