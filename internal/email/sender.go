// Package email delivers transactional mail for the Screenhall directory
// service — currently password-reset messages only.
package email

import "context"

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
