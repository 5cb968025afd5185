package pat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/caseline/caseline/internal/auth"
)

const defaultTokenName = "api token"

// TokenStore is the persistence interface the service needs. *Store
// implements it; tests substitute an in-memory version.
type TokenStore interface {
	Create(ctx context.Context, email, name, prefix, secretHash string, scopes []string) (*Token, error)
	GetActiveByPrefix(ctx context.Context, prefix string) (*Token, string, error)
	GetByID(ctx context.Context, id string) (*Token, string, error)
	ListActive(ctx context.Context, email string) ([]*Token, error)
	Revoke(ctx context.Context, id string, now time.Time) error
	TouchLastUsed(ctx context.Context, id string, now time.Time) error
}

// Service manages issuance, revocation, and authentication of personal
// access tokens.
type Service struct {
	store TokenStore
	cost  int
	now   func() time.Time // injectable clock for testing
}

// NewService creates a PAT service.
func NewService(store TokenStore) *Service {
	return &Service{
		store: store,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}
}

// Create issues a new token for the user owning email and returns the full
// raw token. The raw value cannot be retrieved again after this call: only a
// bcrypt hash of the secret half is stored.
func (s *Service) Create(ctx context.Context, email, name string, scopes []string) (string, *Token, error) {
	if name == "" {
		name = defaultTokenName
	}

	prefix, secret, err := generateParts()
	if err != nil {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", nil, fmt.Errorf("hashing token secret: %w", err)
	}

	t, err := s.store.Create(ctx, auth.NormalizeEmail(email), name, prefix, string(hash), scopes)
	if err != nil {
		return "", nil, err
	}

	return assemble(prefix, secret), t, nil
}

// ListActive returns metadata for all of the user's non-revoked tokens.
// Secrets are never part of the result.
func (s *Service) ListActive(ctx context.Context, email string) ([]*Token, error) {
	tokens, err := s.store.ListActive(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		tokens = []*Token{}
	}
	return tokens, nil
}

// Revoke disables a token. Only the owner may revoke: a mismatched owner
// gets ErrNotOwner (403), deliberately distinct from ErrNotFound so a user
// cannot silently revoke into another account, while unknown IDs stay 404.
// Revoking an already-revoked token succeeds as a no-op.
func (s *Service) Revoke(ctx context.Context, email, tokenID string) error {
	t, ownerEmail, err := s.store.GetByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if ownerEmail != auth.NormalizeEmail(email) {
		return ErrNotOwner
	}
	if !t.Active() {
		return nil
	}
	return s.store.Revoke(ctx, t.ID, s.now())
}

// Authenticate validates a raw token string and returns the owner's email,
// which becomes the authenticated principal. Failure causes are granular
// here (format vs lookup vs secret mismatch) for logging; the transport
// boundary reports all of them as a uniform 401.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (string, error) {
	prefix, secret, err := parseToken(tokenString)
	if err != nil {
		return "", err
	}

	t, ownerEmail, err := s.store.GetActiveByPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(t.SecretHash), []byte(secret)) != nil {
		return "", ErrBadSecret
	}

	if err := s.store.TouchLastUsed(ctx, t.ID, s.now()); err != nil {
		// Authentication already succeeded; losing a last_used_at update is
		// not worth failing the request.
		slog.Warn("failed to update token last_used_at", "token_id", t.ID, "error", err)
	}

	return ownerEmail, nil
}
