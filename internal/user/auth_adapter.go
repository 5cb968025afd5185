package user

import (
	"context"
	"errors"

	"github.com/caseline/caseline/internal/auth"
)

// ErrDisabled marks an account that exists but may not authenticate yet.
var ErrDisabled = errors.New("account disabled")

// AuthAdapter adapts user.Store to the auth.IdentityLookup interface.
type AuthAdapter struct {
	store *Store
}

// NewAuthAdapter creates a new AuthAdapter wrapping the given user store.
func NewAuthAdapter(store *Store) *AuthAdapter {
	return &AuthAdapter{store: store}
}

// LookupByEmail resolves a normalized email to an identity, rejecting
// disabled accounts so an unverified or suspended user cannot authenticate
// with an otherwise valid credential.
func (a *AuthAdapter) LookupByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	u, err := a.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.Enabled {
		return nil, ErrDisabled
	}
	return &auth.Identity{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Admin:  u.Admin,
	}, nil
}
