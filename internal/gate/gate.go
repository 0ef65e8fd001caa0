// Package gate holds the process-wide login-overlay visibility state and
// the guard every gated feature action goes through. Centralizing the
// "prompt to log in" behavior here keeps features from checking session
// state ad hoc.
package gate

import (
	"sync"

	"github.com/screenhall/screenhall/internal/session"
)

// Gate is the login-overlay state plus the feature-action guard.
type Gate struct {
	session *session.Session

	mu   sync.Mutex
	open bool
}

// New creates a Gate bound to the given session.
func New(sess *session.Session) *Gate {
	return &Gate{session: sess}
}

// IsOpen reports whether the login overlay is showing.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Open shows the login overlay.
func (g *Gate) Open() {
	g.mu.Lock()
	g.open = true
	g.mu.Unlock()
}

// Close hides the login overlay.
func (g *Gate) Close() {
	g.mu.Lock()
	g.open = false
	g.mu.Unlock()
}

// Guard runs action only when an identity is resolved and present;
// otherwise it opens the login overlay and skips the action. An unresolved
// session counts as unknown, so the action is skipped there too.
func (g *Gate) Guard(action func()) {
	ident, resolved := g.session.Current()
	if !resolved || ident == nil {
		g.Open()
		return
	}
	action()
}
