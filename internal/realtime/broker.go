package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscription channel capacity. A full channel drops
// the event; the session already has a recompute pending.
const subscriberBuffer = 4

// Broker is an in-process fan-out of events keyed by recipient
type Broker struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[uint64]chan Event
	next uint64
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{subs: make(map[uuid.UUID]map[uint64]chan Event)}
}

// Subscribe returns a stream of events addressed to recipientID and a function
// that ends the subscription and closes the stream
func (b *Broker) Subscribe(recipientID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[recipientID] == nil {
		b.subs[recipientID] = make(map[uint64]chan Event)
	}
	b.subs[recipientID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[recipientID], id)
			if len(b.subs[recipientID]) == 0 {
				delete(b.subs, recipientID)
			}
			close(ch)
		})
	}

	return ch, cancel
}

// Publish delivers ev to the local subscribers of its recipient without blocking
func (b *Broker) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[ev.RecipientID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// SubscriberCount returns the number of open subscriptions for recipientID
func (b *Broker) SubscriberCount(recipientID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[recipientID])
}
