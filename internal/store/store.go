package store

import (
	"context"
	"errors"
)

var ErrTokenNotFound = errors.New("token not found")

// Slot is what a sign-in leaves behind: a bearer token from a password
// login, the backend's session cookie from a browser sign-in, or both.
type Slot struct {
	Token         string
	SessionCookie string
}

func (s Slot) IsZero() bool {
	return s.Token == "" && s.SessionCookie == ""
}

// TokenStore is the single persisted slot for sign-in credentials. Every
// client instance pointed at the same store sees the same slot, so clearing it
// in one place invalidates the session for all of them on their next read.
type TokenStore interface {
	// Load returns the saved slot or ErrTokenNotFound
	Load(ctx context.Context) (Slot, error)

	// Save replaces whatever is in the slot
	Save(ctx context.Context, slot Slot) error

	// Clear empties the slot. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}
