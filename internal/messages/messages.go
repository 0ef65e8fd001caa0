// Package messages maps provider error codes to the closed set of
// user-facing message categories. The table below is the single source of
// truth for the taxonomy; callers branch on Category and use Text for
// display only.
package messages

import (
	"errors"

	"github.com/screenhall/screenhall/internal/provider"
)

// Category classifies an auth outcome for the UI. Every provider failure
// normalizes to exactly one category; unmapped codes fall through to
// Unknown.
type Category int

const (
	Unknown Category = iota
	EmailInUse
	InvalidEmail
	WeakPassword
	NoAccount
	WrongPassword
	TooManyRequests
	NetworkError
	HandshakeCancelled
	ResetSent
)

var categoryNames = map[Category]string{
	Unknown:            "unknown",
	EmailInUse:         "email_in_use",
	InvalidEmail:       "invalid_email",
	WeakPassword:       "weak_password",
	NoAccount:          "no_account",
	WrongPassword:      "wrong_password",
	TooManyRequests:    "too_many_requests",
	NetworkError:       "network_error",
	HandshakeCancelled: "handshake_cancelled",
	ResetSent:          "reset_sent",
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return "unknown"
}

// Message is a categorized, display-ready outcome.
type Message struct {
	Category Category
	Text     string
}

// Success reports whether the message describes a successful outcome.
// The reset sub-flow reuses the message region for its confirmation, so
// display code needs this to pick non-alarming styling.
func (m Message) Success() bool { return m.Category == ResetSent }

var byCode = map[string]Message{
	provider.CodeEmailInUse:      {EmailInUse, "Email already in use. Try signing in."},
	provider.CodeInvalidEmail:    {InvalidEmail, "Please enter a valid email."},
	provider.CodeWeakPassword:    {WeakPassword, "Password must be at least 6 characters."},
	provider.CodeUserNotFound:    {NoAccount, "No account found. Sign up first."},
	provider.CodeWrongPassword:   {WrongPassword, "Incorrect password. Try again."},
	provider.CodeTooManyRequests: {TooManyRequests, "Too many attempts. Try again later."},
	provider.CodeNetworkFailed:   {NetworkError, "Network error. Check your connection."},
	provider.CodePopupClosed:     {HandshakeCancelled, "Google sign-in cancelled."},
}

var unknown = Message{Unknown, "An error occurred. Please try again."}

// Normalize maps any error to its user-facing message. Raw provider codes
// and wrapped causes never reach the UI.
func Normalize(err error) Message {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return NormalizeCode(perr.Code)
	}
	return unknown
}

// NormalizeCode maps a raw provider error code to its message. Total:
// unmapped codes return the Unknown message.
func NormalizeCode(code string) Message {
	if m, ok := byCode[code]; ok {
		return m
	}
	return unknown
}

// ResetConfirmation is the success message for the password-reset sub-flow.
func ResetConfirmation() Message {
	return Message{ResetSent, "Reset link sent! Check your inbox."}
}
