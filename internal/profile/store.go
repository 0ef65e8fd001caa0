package profile

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no profile record exists for an identity id.
var ErrNotFound = errors.New("profile not found")

// Store is the opaque persistence capability profiles live in. Read returns
// ErrNotFound for an absent record; Write persists the record under id.
type Store interface {
	Read(ctx context.Context, id string) (*Profile, error)
	Write(ctx context.Context, id string, p *Profile) error
}
