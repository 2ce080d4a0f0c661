// Package broadcast delivers session progress events to live subscribers.
package broadcast

import (
	"log"
	"sync"

	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
)

const subscriberBuffer = 32

// Broker is an in-process per-session pub/sub. It is a notification layer
// only: the session store remains the source of truth, and a subscriber that
// missed events resynchronizes by reading the current snapshot.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.ProgressEvent]struct{}
}

// NewBroker creates a new broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan domain.ProgressEvent]struct{}),
	}
}

// Subscribe registers a listener for one session's events. The returned
// cancel function must be called when the listener goes away; the channel is
// closed by the broker on cancel or when the subscriber is dropped.
func (b *Broker) Subscribe(sessionID string) (<-chan domain.ProgressEvent, func()) {
	ch := make(chan domain.ProgressEvent, subscriberBuffer)

	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan domain.ProgressEvent]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.remove(sessionID, ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every current subscriber of the session. A
// subscriber whose buffer is full is dropped rather than allowed to block the
// workflow; it can always resync from the store.
func (b *Broker) Publish(sessionID string, ev domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[sessionID] {
		select {
		case ch <- ev:
		default:
			log.Printf("WARN: subscriber buffer full for session %s, dropping", sessionID)
			delete(b.subs[sessionID], ch)
			close(ch)
		}
	}
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
}

// SubscriberCount returns the number of active subscribers for a session.
func (b *Broker) SubscriberCount(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}

func (b *Broker) remove(sessionID string, ch chan domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.subs[sessionID]; ok {
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(b.subs, sessionID)
		}
	}
}
