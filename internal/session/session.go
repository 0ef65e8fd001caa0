// Package session holds the process-wide record of the current identity:
// who is signed in, and whether that has been determined at least once.
// The Session subscribes a single time to the provider's auth-state stream
// and republishes every change to its own subscribers; it performs no
// navigation and no profile writes of its own.
package session

import (
	"sync"

	"github.com/screenhall/screenhall/internal/provider"
	"go.uber.org/zap"
)

// Session is the application-lifetime identity record. Consumers must treat
// an unresolved session as "unknown", never as "signed out".
type Session struct {
	mu       sync.RWMutex
	identity *provider.Identity
	resolved bool

	fanout      Broadcaster
	unsubscribe func()
	closeOnce   sync.Once
	logger      *zap.Logger
}

// Attach creates a Session subscribed to the given auth-state stream. The
// subscription is registered exactly once for the Session's lifetime;
// release it with Close.
func Attach(stream provider.AuthStream, logger *zap.Logger) *Session {
	s := &Session{logger: logger}
	s.unsubscribe = stream.Subscribe(s.deliver)
	return s
}

// deliver updates the session state atomically, then fans the change out to
// subscribers in subscription order.
func (s *Session) deliver(ident *provider.Identity) {
	s.mu.Lock()
	first := !s.resolved
	s.identity = ident
	s.resolved = true
	s.mu.Unlock()

	if first {
		s.logger.Debug("auth state resolved", zap.Bool("signed_in", ident != nil))
	}
	s.fanout.Publish(ident)
}

// Identity returns the current identity, or nil when signed out or not yet
// resolved.
func (s *Session) Identity() *provider.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Resolved reports whether the auth-state stream has delivered at least one
// notification.
func (s *Session) Resolved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved
}

// Current returns the identity together with the resolved flag, read under
// a single lock.
func (s *Session) Current() (*provider.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.resolved
}

// Subscribe registers fn for identity changes and returns an idempotent
// unsubscribe function. If the session is already resolved, fn is invoked
// with the current identity before Subscribe returns.
func (s *Session) Subscribe(fn func(*provider.Identity)) func() {
	return s.fanout.Subscribe(fn)
}

// Close releases the stream subscription. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(s.unsubscribe)
}
