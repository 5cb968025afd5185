package jira

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caseline/caseline/internal/crypto"
)

// ErrBindingNotFound is returned when a project has no Jira binding.
var ErrBindingNotFound = errors.New("jira binding not found")

// Store persists Jira bindings in PostgreSQL. The API token is encrypted at
// rest when a cipher is configured.
type Store struct {
	db     *pgxpool.Pool
	cipher *crypto.Cipher
}

// NewStore creates a binding store. A nil cipher stores tokens verbatim.
func NewStore(db *pgxpool.Pool, cipher *crypto.Cipher) *Store {
	return &Store{db: db, cipher: cipher}
}

// Upsert creates or replaces the binding for a project.
func (s *Store) Upsert(ctx context.Context, b *Binding) (*Binding, error) {
	encrypted, err := s.cipher.Encrypt(b.APIToken)
	if err != nil {
		return nil, fmt.Errorf("encrypting api token: %w", err)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO jira_bindings (project_id, site_url, user_email, api_token, project_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (project_id) DO UPDATE
		SET site_url = EXCLUDED.site_url,
		    user_email = EXCLUDED.user_email,
		    api_token = EXCLUDED.api_token,
		    project_key = EXCLUDED.project_key,
		    updated_at = now()
		RETURNING project_id, site_url, user_email, api_token, project_key, created_at, updated_at`,
		b.ProjectID, b.SiteURL, b.UserEmail, encrypted, b.ProjectKey,
	)
	return s.scanBinding(row)
}

// GetByProject returns the binding for a project with the API token
// decrypted, ready for outbound use.
func (s *Store) GetByProject(ctx context.Context, projectID string) (*Binding, error) {
	row := s.db.QueryRow(ctx, `
		SELECT project_id, site_url, user_email, api_token, project_key, created_at, updated_at
		FROM jira_bindings
		WHERE project_id = $1`,
		projectID,
	)
	b, err := s.scanBinding(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBindingNotFound
		}
		return nil, err
	}
	return b, nil
}

// Delete removes the binding for a project.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM jira_bindings WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("deleting jira binding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBindingNotFound
	}
	return nil
}

func (s *Store) scanBinding(row pgx.Row) (*Binding, error) {
	var b Binding
	var storedToken string
	err := row.Scan(&b.ProjectID, &b.SiteURL, &b.UserEmail, &storedToken, &b.ProjectKey, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	decrypted, err := s.cipher.Decrypt(storedToken)
	if err != nil {
		return nil, fmt.Errorf("decrypting api token: %w", err)
	}
	b.APIToken = decrypted
	return &b, nil
}
