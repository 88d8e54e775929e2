package push

import (
	"log/slog"
	"sync"
)

// BrokerEvent is one published event tagged with its channel.
type BrokerEvent struct {
	Channel string
	Event   any
}

// Broker is the in-process fan-out behind the SSE stream. It implements
// Sink, so the publisher reaches SSE subscribers and push-socket clients
// through the same Publish call.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan BrokerEvent]bool // requestID → subscriber set
}

// NewBroker builds an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan BrokerEvent]bool)}
}

// Subscribe registers for every event of one request. The returned
// cancel is idempotent and must be called when the consumer is done.
// The channel is never closed: a publish racing a cancel may still hold
// a snapshot of it.
func (b *Broker) Subscribe(requestID string) (<-chan BrokerEvent, func()) {
	ch := make(chan BrokerEvent, 16)

	b.mu.Lock()
	if _, ok := b.subs[requestID]; !ok {
		b.subs[requestID] = make(map[chan BrokerEvent]bool)
	}
	b.subs[requestID][ch] = true
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[requestID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, requestID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers reports how many consumers follow a request. Lets tests
// wait for a subscription instead of sleeping.
func (b *Broker) Subscribers(requestID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[requestID])
}

// Publish delivers the event to every subscriber of the request. A slow
// subscriber with a full buffer drops the event rather than blocking
// the pipeline.
func (b *Broker) Publish(channel, requestID string, event any) {
	b.mu.RLock()
	chans := make([]chan BrokerEvent, 0, len(b.subs[requestID]))
	for ch := range b.subs[requestID] {
		chans = append(chans, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- BrokerEvent{Channel: channel, Event: event}:
		default:
			slog.Warn("SSE subscriber buffer full, dropping event",
				"request_id", requestID, "channel", channel)
		}
	}
}

// Fanout forwards every publish to all sinks.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(channel, requestID string, event any) {
	for _, sink := range f {
		sink.Publish(channel, requestID, event)
	}
}
