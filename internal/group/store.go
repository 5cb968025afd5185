package group

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Invariant violations surfaced to handlers as validation failures.
var (
	// ErrPersonalGroup guards the auto-created per-user group, which cannot
	// be deleted.
	ErrPersonalGroup = errors.New("personal groups cannot be deleted")
	// ErrOwnerImmutable guards the exactly-one-OWNER invariant: the owner
	// membership cannot be demoted or removed.
	ErrOwnerImmutable = errors.New("the group owner cannot be demoted or removed")
	// ErrAlreadyMember guards existing memberships: accepting an invitation
	// never overwrites a live (non-REMOVED) row.
	ErrAlreadyMember = errors.New("user is already a member of this group")
)

// ErrMembershipNotFound reports the absence of a (group, user) row, distinct
// from infrastructure failures so outages do not read as missing memberships.
var ErrMembershipNotFound = errors.New("membership not found")

// Store provides database operations for groups and memberships.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new group store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a group and its OWNER membership in one transaction, so a
// group without an owner can never be observed.
func (s *Store) Create(ctx context.Context, name string, personal bool, ownerID string) (*Group, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	g := &Group{}
	err = tx.QueryRow(ctx,
		`INSERT INTO groups (name, personal)
		 VALUES ($1, $2)
		 RETURNING id, name, personal, created_at`,
		name, personal,
	).Scan(&g.ID, &g.Name, &g.Personal, &g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO group_memberships (group_id, user_id, role, status)
		 VALUES ($1, $2, $3, $4)`,
		g.ID, ownerID, RoleOwner, StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("creating owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing group creation: %w", err)
	}
	return g, nil
}

// GetByID retrieves a group by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Group, error) {
	g := &Group{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, personal, created_at FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.Personal, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("getting group by id: %w", err)
	}
	return g, nil
}

// ListForUser returns the groups where the user holds an ACTIVE membership.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Group, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT g.id, g.name, g.personal, g.created_at
		 FROM groups g
		 JOIN group_memberships m ON m.group_id = g.id
		 WHERE m.user_id = $1 AND m.status = $2
		 ORDER BY g.created_at DESC`,
		userID, StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		g := &Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Personal, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpdateName renames a group.
func (s *Store) UpdateName(ctx context.Context, id, name string) (*Group, error) {
	g := &Group{}
	err := s.pool.QueryRow(ctx,
		`UPDATE groups SET name = $2 WHERE id = $1
		 RETURNING id, name, personal, created_at`,
		id, name,
	).Scan(&g.ID, &g.Name, &g.Personal, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("updating group: %w", err)
	}
	return g, nil
}

// Delete removes a non-personal group and everything hanging off it (the
// schema cascades memberships, invitations, and projects).
func (s *Store) Delete(ctx context.Context, id string) error {
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if g.Personal {
		return ErrPersonalGroup
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	return nil
}

// --- MembershipSource implementation ---

// GetUserIDByEmail resolves a normalized email to a user ID, ErrUserNotFound
// if no account exists.
func (s *Store) GetUserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM users WHERE email = $1`, email,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("resolving user email: %w", err)
	}
	return id, nil
}

// GroupExists reports whether a group with the given ID exists.
func (s *Store) GroupExists(ctx context.Context, groupID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, groupID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking group existence: %w", err)
	}
	return exists, nil
}

// GetMembership fetches the single (group, user) membership row,
// ErrMembershipNotFound if none exists.
func (s *Store) GetMembership(ctx context.Context, groupID, userID string) (*Membership, error) {
	m := &Membership{}
	err := s.pool.QueryRow(ctx,
		`SELECT group_id, user_id, role, status, created_at
		 FROM group_memberships WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	).Scan(&m.GroupID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("getting membership: %w", err)
	}
	return m, nil
}

// --- member management ---

// ListMembers returns all non-removed memberships with user display fields.
func (s *Store) ListMembers(ctx context.Context, groupID string) ([]*Member, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.group_id, m.user_id, m.role, m.status, m.created_at, u.email, u.name
		 FROM group_memberships m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.group_id = $1 AND m.status <> $2
		 ORDER BY m.created_at ASC`,
		groupID, StatusRemoved,
	)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m := &Member{}
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt, &m.Email, &m.Name); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// rowQuerier lets the membership upsert run on a pool or inside a
// transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// upsertActiveMembership inserts an ACTIVE membership or revives a REMOVED
// one in place. A live (non-REMOVED) row is never overwritten: the
// conditional upsert matches no row then, which surfaces as
// ErrAlreadyMember. Overwriting would let an accepted invitation rewrite an
// existing member's role, the OWNER's included.
func upsertActiveMembership(ctx context.Context, q rowQuerier, groupID, userID string, role Role) (*Membership, error) {
	m := &Membership{}
	err := q.QueryRow(ctx,
		`INSERT INTO group_memberships (group_id, user_id, role, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (group_id, user_id)
		 DO UPDATE SET role = EXCLUDED.role, status = EXCLUDED.status
		 WHERE group_memberships.status = $5
		 RETURNING group_id, user_id, role, status, created_at`,
		groupID, userID, role, StatusActive, StatusRemoved,
	).Scan(&m.GroupID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("adding member: %w", err)
	}
	return m, nil
}

// AddMember inserts or revives a membership in ACTIVE status. Refuses with
// ErrAlreadyMember when a live membership exists.
func (s *Store) AddMember(ctx context.Context, groupID, userID string, role Role) (*Membership, error) {
	return upsertActiveMembership(ctx, s.pool, groupID, userID, role)
}

// UpdateMemberRole changes a member's role. The owner membership is
// immutable here, and no second OWNER can be minted, preserving the
// exactly-one-OWNER invariant.
func (s *Store) UpdateMemberRole(ctx context.Context, groupID, userID string, role Role) (*Membership, error) {
	current, err := s.GetMembership(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if current.Role == RoleOwner || role == RoleOwner {
		return nil, ErrOwnerImmutable
	}

	m := &Membership{}
	err = s.pool.QueryRow(ctx,
		`UPDATE group_memberships SET role = $3
		 WHERE group_id = $1 AND user_id = $2
		 RETURNING group_id, user_id, role, status, created_at`,
		groupID, userID, role,
	).Scan(&m.GroupID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("updating member role: %w", err)
	}
	return m, nil
}

// RemoveMember marks a membership REMOVED. The owner cannot be removed.
func (s *Store) RemoveMember(ctx context.Context, groupID, userID string) error {
	current, err := s.GetMembership(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if current.Role == RoleOwner {
		return ErrOwnerImmutable
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE group_memberships SET status = $3
		 WHERE group_id = $1 AND user_id = $2`,
		groupID, userID, StatusRemoved,
	)
	if err != nil {
		return fmt.Errorf("removing member: %w", err)
	}
	return nil
}
