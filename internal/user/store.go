package user

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/caseline/caseline/internal/auth"
)

// Store provides database operations for users.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new user store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanUser(scan func(dest ...any) error) (*User, error) {
	u := &User{}
	err := scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Enabled, &u.Admin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new disabled user with a bcrypt-hashed password.
func (s *Store) Create(ctx context.Context, in CreateUserInput) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO users (email, password_hash, name)
			 VALUES ($1, $2, $3)
			 RETURNING id, email, password_hash, name, enabled, is_admin, created_at`,
			auth.NormalizeEmail(in.Email), string(hash), in.Name,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT id, email, password_hash, name, enabled, is_admin, created_at
			 FROM users WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by normalized email address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT id, email, password_hash, name, enabled, is_admin, created_at
			 FROM users WHERE email = $1`, auth.NormalizeEmail(email),
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// SetEnabled flips the enabled flag, used when an email verification token
// is consumed.
func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET enabled = $2 WHERE id = $1`, id, enabled,
	)
	if err != nil {
		return fmt.Errorf("updating enabled flag: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, id, string(hash),
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

// SetPendingEmail records the address an email change token was issued for.
// The change only takes effect once the token is consumed.
func (s *Store) SetPendingEmail(ctx context.Context, id, email string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET pending_email = $2 WHERE id = $1`, id, auth.NormalizeEmail(email),
	)
	if err != nil {
		return fmt.Errorf("setting pending email: %w", err)
	}
	return nil
}

// ConfirmPendingEmail promotes the pending address to the primary one, used
// when an email change token is consumed. A user with no pending address is a
// no-op.
func (s *Store) ConfirmPendingEmail(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET email = pending_email, pending_email = NULL
		 WHERE id = $1 AND pending_email IS NOT NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("confirming pending email: %w", err)
	}
	return nil
}

// CheckPassword verifies a plaintext password against the user's stored hash.
func CheckPassword(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
