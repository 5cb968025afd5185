package token

import (
	"context"
	"time"
)

// TokenStore is the persistence interface the service needs. *Store
// implements it; tests substitute an in-memory version.
type TokenStore interface {
	Create(ctx context.Context, userID string, purpose Purpose, tokenHash string, expiresAt time.Time) (*VerificationToken, error)
	Consume(ctx context.Context, tokenHash string, purpose Purpose, now time.Time) (string, error)
	DeleteActive(ctx context.Context, userID string, purpose Purpose) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service manages the lifecycle of one-time verification tokens.
type Service struct {
	store TokenStore
	now   func() time.Time // injectable clock for testing
}

// NewService creates a verification token service.
func NewService(store TokenStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Issue invalidates any outstanding unconsumed tokens of the same purpose for
// the user, then creates a fresh one, guaranteeing at most one active token
// per (user, purpose). It returns the raw token, which exists only in this
// return value and whatever email it gets embedded in.
func (s *Service) Issue(ctx context.Context, userID string, purpose Purpose, ttl time.Duration) (string, error) {
	if _, err := s.store.DeleteActive(ctx, userID, purpose); err != nil {
		return "", err
	}

	raw := NewRaw()
	if _, err := s.store.Create(ctx, userID, purpose, Hash(raw), s.now().Add(ttl)); err != nil {
		return "", err
	}
	return raw, nil
}

// Consume validates a raw token against a purpose and marks it used. The
// first call on a valid token succeeds; every later call with the same raw
// value fails with ErrInvalid, as does any unknown, expired, or
// wrong-purpose token.
func (s *Service) Consume(ctx context.Context, raw string, purpose Purpose) (string, error) {
	return s.store.Consume(ctx, Hash(raw), purpose, s.now())
}

// PurgeExpired removes all tokens past their expiry, used or not.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.PurgeExpired(ctx, s.now())
}
