package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus with consumer-group semantics: every group reads
// the whole topic log from the beginning, each group sees an event once. It backs
// tests and single-node development runs.
type MemoryBus struct {
	mu      sync.Mutex
	logs    map[string][]FailureEvent
	offsets map[string]int
	notify  chan struct{}
	closed  bool
}

// NewMemoryBus returns an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		logs:    make(map[string][]FailureEvent),
		offsets: make(map[string]int),
		notify:  make(chan struct{}),
	}
}

// Publish appends the event to the topic log and wakes subscribers.
func (b *MemoryBus) Publish(_ context.Context, topic string, event FailureEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.logs[topic] = append(b.logs[topic], event)
	close(b.notify)
	b.notify = make(chan struct{})
	return nil
}

// Subscribe delivers events not yet consumed by group until ctx is done or the bus closes.
func (b *MemoryBus) Subscribe(ctx context.Context, topic, group string, handler Handler) error {
	key := topic + "\x00" + group
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil
		}
		offset := b.offsets[key]
		pending := append([]FailureEvent(nil), b.logs[topic][offset:]...)
		b.offsets[key] = offset + len(pending)
		wait := b.notify
		b.mu.Unlock()

		for _, event := range pending {
			_ = handler(ctx, event)
		}
		if len(pending) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-wait:
		}
	}
}

// Events returns a copy of everything published on topic.
func (b *MemoryBus) Events(topic string) []FailureEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]FailureEvent(nil), b.logs[topic]...)
}

// Close stops all subscribers.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.notify)
	}
	return nil
}
