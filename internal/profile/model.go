// Package profile manages Screenhall profile records: application data
// keyed by identity id, created at most once per identity by the
// Reconciler.
package profile

import "time"

// Sign-in methods referenced by synthesized bios.
const (
	MethodEmail  = "Email"
	MethodGoogle = "Google"
)

// Profile is the persisted application record for a user, distinct from the
// provider-owned identity.
type Profile struct {
	Email     string    `json:"email"      db:"email"`
	Username  string    `json:"username"   db:"username"`
	Avatar    string    `json:"avatar"     db:"avatar"`
	Bio       string    `json:"bio"        db:"bio"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
