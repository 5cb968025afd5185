package pat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for personal access tokens.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new PAT store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanToken(scan func(dest ...any) error) (*Token, string, error) {
	t := &Token{}
	var email string
	err := scan(&t.ID, &t.UserID, &t.Name, &t.Prefix, &t.SecretHash, &t.Scopes,
		&t.CreatedAt, &t.LastUsedAt, &t.RevokedAt, &email)
	if err != nil {
		return nil, "", err
	}
	if t.Scopes == nil {
		t.Scopes = []string{}
	}
	return t, email, nil
}

// Create inserts a token for the user owning the given email. It fails with
// ErrNotFound if no such user exists.
func (s *Store) Create(ctx context.Context, email, name, prefix, secretHash string, scopes []string) (*Token, error) {
	if scopes == nil {
		scopes = []string{}
	}
	t := &Token{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO api_tokens (user_id, name, prefix, secret_hash, scopes)
		 SELECT id, $2, $3, $4, $5 FROM users WHERE email = $1
		 RETURNING id, user_id, name, prefix, secret_hash, scopes, created_at, last_used_at, revoked_at`,
		email, name, prefix, secretHash, scopes,
	).Scan(&t.ID, &t.UserID, &t.Name, &t.Prefix, &t.SecretHash, &t.Scopes,
		&t.CreatedAt, &t.LastUsedAt, &t.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("creating api token: %w", err)
	}
	return t, nil
}

// GetActiveByPrefix looks up a non-revoked token by its cleartext prefix and
// returns it with its owner's email.
func (s *Store) GetActiveByPrefix(ctx context.Context, prefix string) (*Token, string, error) {
	t, email, err := scanToken(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT t.id, t.user_id, t.name, t.prefix, t.secret_hash, t.scopes,
			        t.created_at, t.last_used_at, t.revoked_at, u.email
			 FROM api_tokens t JOIN users u ON t.user_id = u.id
			 WHERE t.prefix = $1 AND t.revoked_at IS NULL`,
			prefix,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("getting token by prefix: %w", err)
	}
	return t, email, nil
}

// GetByID retrieves a token (revoked or not) with its owner's email.
func (s *Store) GetByID(ctx context.Context, id string) (*Token, string, error) {
	t, email, err := scanToken(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT t.id, t.user_id, t.name, t.prefix, t.secret_hash, t.scopes,
			        t.created_at, t.last_used_at, t.revoked_at, u.email
			 FROM api_tokens t JOIN users u ON t.user_id = u.id
			 WHERE t.id = $1`,
			id,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("getting token by id: %w", err)
	}
	return t, email, nil
}

// ListActive returns all non-revoked tokens owned by the given email,
// newest first.
func (s *Store) ListActive(ctx context.Context, email string) ([]*Token, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.id, t.user_id, t.name, t.prefix, t.secret_hash, t.scopes,
		        t.created_at, t.last_used_at, t.revoked_at, u.email
		 FROM api_tokens t JOIN users u ON t.user_id = u.id
		 WHERE u.email = $1 AND t.revoked_at IS NULL
		 ORDER BY t.created_at DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("listing api tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		t, _, err := scanToken(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// Revoke marks a token revoked. Revoking an already-revoked token is a
// no-op.
func (s *Store) Revoke(ctx context.Context, id string, now time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, now,
	)
	if err != nil {
		return fmt.Errorf("revoking api token: %w", err)
	}
	return nil
}

// TouchLastUsed records a successful authentication.
func (s *Store) TouchLastUsed(ctx context.Context, id string, now time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_tokens SET last_used_at = $2 WHERE id = $1`,
		id, now,
	)
	if err != nil {
		return fmt.Errorf("updating last_used_at: %w", err)
	}
	return nil
}
