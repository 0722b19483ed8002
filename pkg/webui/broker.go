package webui

import (
	"sync"

	"toolflow/pkg/pipeline"
)

// Broker fans workflow events out to connected SSE subscribers. Slow
// subscribers drop events rather than blocking the producer.
type Broker struct {
	subscribers map[chan pipeline.Event]struct{}
	mu          sync.Mutex
	closed      bool
}

const subscriberBuffer = 64

// NewBroker creates an event broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[chan pipeline.Event]struct{}),
	}
}

// Subscribe registers a new subscriber channel. The returned cancel
// function removes the subscription and closes the channel.
func (b *Broker) Subscribe() (<-chan pipeline.Event, func()) {
	ch := make(chan pipeline.Event, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subscribers[ch] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers without blocking.
func (b *Broker) Publish(ev pipeline.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full; drop rather than stall the run.
		}
	}
}

// Close shuts down the broker and closes all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// SubscriberCount reports the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
