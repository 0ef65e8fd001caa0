package session

import (
	"sync"

	"github.com/screenhall/screenhall/internal/provider"
)

// Broadcaster is the fan-out primitive behind an auth-state stream.
// Provider adapters publish identity changes through it; subscribers are
// notified synchronously in subscription order. Once the first state has
// been published, late subscribers receive the current state immediately
// on Subscribe.
type Broadcaster struct {
	mu      sync.Mutex
	nextID  int
	subs    []*subscriber
	current *provider.Identity
	primed  bool
}

type subscriber struct {
	id int
	fn func(*provider.Identity)
}

// NewBroadcaster creates an empty, unprimed Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Publish records ident as the current state and notifies every subscriber
// in subscription order. A nil ident means signed out.
func (b *Broadcaster) Publish(ident *provider.Identity) {
	b.mu.Lock()
	b.current = ident
	b.primed = true
	subs := make([]*subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	// Callbacks run outside the lock so a subscriber may subscribe or
	// unsubscribe from within its own callback.
	for _, s := range subs {
		s.fn(ident)
	}
}

// Subscribe registers fn and returns an idempotent unsubscribe function.
// If a state has already been published, fn is invoked with it before
// Subscribe returns.
func (b *Broadcaster) Subscribe(fn func(*provider.Identity)) func() {
	b.mu.Lock()
	s := &subscriber{id: b.nextID, fn: fn}
	b.nextID++
	b.subs = append(b.subs, s)
	primed, current := b.primed, b.current
	b.mu.Unlock()

	if primed {
		fn(current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, sub := range b.subs {
				if sub.id == s.id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					break
				}
			}
		})
	}
}
