package group

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInviteNotFound covers unknown and non-pending invitations alike.
var ErrInviteNotFound = errors.New("invitation not found")

// InviteStore provides database operations for group invitations.
type InviteStore struct {
	pool *pgxpool.Pool
}

// NewInviteStore creates an invitation store backed by the given pool.
func NewInviteStore(pool *pgxpool.Pool) *InviteStore {
	return &InviteStore{pool: pool}
}

// Create inserts a PENDING invitation, first cancelling any existing PENDING
// one for the same (group, email) so at most one is outstanding.
func (s *InviteStore) Create(ctx context.Context, groupID, email string, role Role, tokenHash string, expiresAt time.Time) (*Invitation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE group_invitations SET status = $3
		 WHERE group_id = $1 AND email = $2 AND status = $4`,
		groupID, email, InviteCancelled, InvitePending,
	)
	if err != nil {
		return nil, fmt.Errorf("cancelling prior invitation: %w", err)
	}

	inv := &Invitation{}
	err = tx.QueryRow(ctx,
		`INSERT INTO group_invitations (group_id, email, role, token_hash, status, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, group_id, email, role, token_hash, status, expires_at, created_at`,
		groupID, email, role, tokenHash, InvitePending, expiresAt,
	).Scan(&inv.ID, &inv.GroupID, &inv.Email, &inv.Role, &inv.TokenHash, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating invitation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing invitation: %w", err)
	}
	return inv, nil
}

// ListPending returns the outstanding invitations for a group.
func (s *InviteStore) ListPending(ctx context.Context, groupID string) ([]*Invitation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, group_id, email, role, token_hash, status, expires_at, created_at
		 FROM group_invitations
		 WHERE group_id = $1 AND status = $2
		 ORDER BY created_at DESC`,
		groupID, InvitePending,
	)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	defer rows.Close()

	var invites []*Invitation
	for rows.Next() {
		inv := &Invitation{}
		if err := rows.Scan(&inv.ID, &inv.GroupID, &inv.Email, &inv.Role, &inv.TokenHash,
			&inv.Status, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning invitation row: %w", err)
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// Cancel marks a PENDING invitation CANCELLED.
func (s *InviteStore) Cancel(ctx context.Context, groupID, inviteID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE group_invitations SET status = $3
		 WHERE id = $1 AND group_id = $2 AND status = $4`,
		inviteID, groupID, InviteCancelled, InvitePending,
	)
	if err != nil {
		return fmt.Errorf("cancelling invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}
	return nil
}

// GetPendingByHash finds the live invitation matching a token hash. Expired
// or non-pending invitations look absent.
func (s *InviteStore) GetPendingByHash(ctx context.Context, tokenHash string, now time.Time) (*Invitation, error) {
	inv := &Invitation{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, group_id, email, role, token_hash, status, expires_at, created_at
		 FROM group_invitations
		 WHERE token_hash = $1 AND status = $2 AND expires_at > $3`,
		tokenHash, InvitePending, now,
	).Scan(&inv.ID, &inv.GroupID, &inv.Email, &inv.Role, &inv.TokenHash, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("getting invitation by hash: %w", err)
	}
	return inv, nil
}

// Accept consumes a PENDING invitation and creates the membership in one
// transaction: the invitation is only marked ACCEPTED if the membership
// insert succeeds, so a failed accept leaves the token retryable. The status
// predicate makes concurrent accepts resolve to one winner, and a live
// existing membership aborts with ErrAlreadyMember.
func (s *InviteStore) Accept(ctx context.Context, inviteID, userID string, role Role) (*Membership, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var groupID string
	err = tx.QueryRow(ctx,
		`UPDATE group_invitations SET status = $2
		 WHERE id = $1 AND status = $3
		 RETURNING group_id`,
		inviteID, InviteAccepted, InvitePending,
	).Scan(&groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("accepting invitation: %w", err)
	}

	m, err := upsertActiveMembership(ctx, tx, groupID, userID, role)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing acceptance: %w", err)
	}
	return m, nil
}

// ExpireStale flips PENDING invitations past their expiry to EXPIRED,
// returning the number transitioned. Called by the janitor.
func (s *InviteStore) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE group_invitations SET status = $2
		 WHERE status = $3 AND expires_at <= $1`,
		now, InviteExpired, InvitePending,
	)
	if err != nil {
		return 0, fmt.Errorf("expiring invitations: %w", err)
	}
	return tag.RowsAffected(), nil
}
