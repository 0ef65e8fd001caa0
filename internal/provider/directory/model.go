// Package directory is the self-hosted identity provider: email/password
// accounts in PostgreSQL, third-party handshake linking, reset-message
// delivery, and the process-local auth-state stream.
package directory

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/screenhall/screenhall/internal/provider"
)

// ErrNotFound is returned when an account lookup finds no matching record.
var ErrNotFound = errors.New("account not found")

// ErrDuplicateEmail is returned when a signup reuses a registered email.
var ErrDuplicateEmail = errors.New("email already registered")

// Account is a directory account record.
type Account struct {
	ID           uuid.UUID `json:"id"            db:"id"`
	Email        string    `json:"email"         db:"email"`
	PasswordHash string    `json:"-"             db:"password_hash"`
	DisplayName  string    `json:"display_name"  db:"display_name"`
	AvatarURL    string    `json:"avatar_url"    db:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}

// Identity converts the account to its provider-facing representation.
func (a *Account) Identity() *provider.Identity {
	return &provider.Identity{
		ID:          a.ID.String(),
		Email:       a.Email,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
	}
}

// ExternalIdentity is what a handshake broker learns about the user from
// the third-party provider.
type ExternalIdentity struct {
	Provider    string `json:"provider"`
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
