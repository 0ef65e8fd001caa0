// Package provider defines the identity-provider capabilities consumed by
// the Screenhall auth layer: credential verification and creation, the
// third-party sign-in handshake, reset-message delivery, and the auth-state
// stream. Any conforming backend satisfies these contracts; the rest of the
// codebase never inspects a backend's raw error shapes past this boundary.
package provider

import (
	"context"
	"fmt"
)

// Identity is the externally verified representation of a signed-in user.
// It is owned by the provider; Screenhall never mutates it directly except
// through UpdateDisplayName.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Provider error codes. These are the stable wire-level taxonomy; the
// messages package maps them to user-facing text.
const (
	CodeEmailInUse      = "auth/email-already-in-use"
	CodeInvalidEmail    = "auth/invalid-email"
	CodeWeakPassword    = "auth/weak-password"
	CodeUserNotFound    = "auth/user-not-found"
	CodeWrongPassword   = "auth/wrong-password"
	CodeTooManyRequests = "auth/too-many-requests"
	CodeNetworkFailed   = "auth/network-request-failed"
	CodePopupClosed     = "auth/popup-closed-by-user"
)

// Error is the tagged variant every provider failure is decoded into at the
// boundary. Cancelled marks a handshake the user abandoned; callers treat it
// as a soft outcome rather than a hard failure.
type Error struct {
	Code      string
	Cancelled bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a provider error code.
func NewError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// AuthStream delivers auth-state notifications. Subscribers are notified
// synchronously in subscription order; a nil Identity means signed out.
// A subscriber registered after the stream has delivered its first state
// receives the current state immediately.
type AuthStream interface {
	Subscribe(fn func(*Identity)) (unsubscribe func())
}

// Provider is the full identity-provider capability set.
type Provider interface {
	// VerifyCredentials checks an email/password pair and returns the
	// identity on success.
	VerifyCredentials(ctx context.Context, email, password string) (*Identity, error)

	// CreateCredentials registers a new email/password identity.
	CreateCredentials(ctx context.Context, email, password string) (*Identity, error)

	// UpdateDisplayName sets the display name on an identity. An empty name
	// clears it.
	UpdateDisplayName(ctx context.Context, id, name string) error

	// BeginHandshake runs the third-party sign-in handshake (browser
	// popup/redirect) and returns the resulting identity. A handshake the
	// user abandons fails with an Error whose Cancelled flag is set.
	BeginHandshake(ctx context.Context) (*Identity, error)

	// SendResetMessage asks the provider to deliver a password-reset
	// message to the given address.
	SendResetMessage(ctx context.Context, email string) error

	// SignOut discards the current identity and publishes the signed-out
	// state on the auth stream.
	SignOut(ctx context.Context) error

	// AuthStream exposes the provider's auth-state stream.
	AuthStream() AuthStream
}
