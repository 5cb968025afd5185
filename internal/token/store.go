package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for verification tokens.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new verification token store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a token record. It does not touch existing tokens; callers
// that need the single-active-token invariant call DeleteActive first.
func (s *Store) Create(ctx context.Context, userID string, purpose Purpose, tokenHash string, expiresAt time.Time) (*VerificationToken, error) {
	t := &VerificationToken{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO verification_tokens (user_id, purpose, token_hash, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, purpose, token_hash, expires_at, used_at, created_at`,
		userID, purpose, tokenHash, expiresAt,
	).Scan(&t.ID, &t.UserID, &t.Purpose, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating verification token: %w", err)
	}
	return t, nil
}

// Consume marks the matching active token as used and returns its owner.
// Active means: hash and purpose match, not yet used, not yet expired
// (strict expires_at > now). The check and the write are a single UPDATE so
// concurrent consumers of the same token get exactly one success.
func (s *Store) Consume(ctx context.Context, tokenHash string, purpose Purpose, now time.Time) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx,
		`UPDATE verification_tokens
		 SET used_at = $3
		 WHERE token_hash = $1 AND purpose = $2 AND used_at IS NULL AND expires_at > $3
		 RETURNING user_id`,
		tokenHash, purpose, now,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalid
		}
		return "", fmt.Errorf("consuming verification token: %w", err)
	}
	return userID, nil
}

// DeleteActive removes all unconsumed tokens of a purpose for a user,
// returning the number deleted.
func (s *Store) DeleteActive(ctx context.Context, userID string, purpose Purpose) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM verification_tokens
		 WHERE user_id = $1 AND purpose = $2 AND used_at IS NULL`,
		userID, purpose,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting active tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeExpired deletes every token, used or not, whose expiry has passed.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM verification_tokens WHERE expires_at <= $1`, now,
	)
	if err != nil {
		return 0, fmt.Errorf("purging expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
