package store

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// ChatEventType is the kind of change applied to the chat entry collection.
type ChatEventType string

const (
	ChatEventInsert ChatEventType = "INSERT"
	ChatEventUpdate ChatEventType = "UPDATE"
	ChatEventDelete ChatEventType = "DELETE"
)

// ChatEvent is a change to the chat entry collection. Delete events only carry the entry ID.
type ChatEvent struct {
	Type  ChatEventType
	Entry *ChatEntry
}

// subscriptionBuffer is how many events a subscriber may lag behind before
// the broker closes its subscription.
const subscriptionBuffer = 64

// Subscription receives chat events until Close is called. C is closed when
// the subscription is released, when the store closes, or when the subscriber
// falls more than subscriptionBuffer events behind; Lagged tells the last case
// apart.
type Subscription struct {
	C <-chan ChatEvent

	ch     chan ChatEvent
	broker *broker
	once   sync.Once
	lagged atomic.Bool
}

// Lagged reports whether the subscription was closed because events were lost.
// The subscriber has to reload its state and subscribe again.
func (sub *Subscription) Lagged() bool {
	return sub.lagged.Load()
}

// Close releases the subscription. It is safe to call more than once.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.broker.unsubscribe(sub)
	})
}

type broker struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func newBroker() *broker {
	return &broker{subs: map[*Subscription]struct{}{}}
}

// SubscribeChatEvents opens a change stream over chat entries created or
// deleted through this store.
func (s *Store) SubscribeChatEvents() *Subscription {
	return s.broker.subscribe()
}

func (b *broker) subscribe() *Subscription {
	ch := make(chan ChatEvent, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *broker) publish(event ChatEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			slog.Warn("closing lagging chat event subscription", slog.String("type", string(event.Type)), slog.Int("id", int(event.Entry.ID)))
			sub.lagged.Store(true)
			delete(b.subs, sub)
			close(sub.ch)
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// SubscriberCount returns the number of open chat event subscriptions.
func (s *Store) SubscriberCount() int {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	return len(s.broker.subs)
}
