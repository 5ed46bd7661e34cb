// Package events is the in-process observer bus that replaces the browser's
// window events. Publishers are the ledger and group manager; subscribers
// re-evaluate derived views.
package events

import (
	"sync"
	"time"
)

// Topic identifies an event kind.
type Topic string

const (
	// Reset fires after the ledger cleared every persisted key.
	Reset Topic = "reset"
	// GroupsChanged fires after any group mutation.
	GroupsChanged Topic = "groups-changed"
	// BalanceChanged fires after every successful earn or spend.
	BalanceChanged Topic = "balance-changed"
	// GameFinished fires once when a game session ends, cancelled or not.
	GameFinished Topic = "game-finished"
	// OfferRedeemed fires after a catalog redemption changed stock or claims.
	OfferRedeemed Topic = "offer-redeemed"
)

// Event is a published notification.
type Event struct {
	Topic     Topic          `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Handler consumes an event. Handlers run synchronously on the publisher's goroutine.
type Handler func(Event)

type subscription struct {
	id     uint64
	topics map[Topic]bool // nil means all topics
	fn     Handler
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for the given topics, or for every topic when none
// are given. The returned func removes the subscription.
func (b *Bus) Subscribe(fn Handler, topics ...Topic) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := subscription{id: b.nextID, fn: fn}
	if len(topics) > 0 {
		sub.topics = make(map[Topic]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}
	b.subs = append(b.subs, sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to every matching subscriber in registration order.
func (b *Bus) Publish(topic Topic, data map[string]any) {
	evt := Event{Topic: topic, Data: data, CreatedAt: time.Now()}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.topics == nil || s.topics[topic] {
			handlers = append(handlers, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}
