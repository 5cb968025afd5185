package group

import (
	"context"
	"errors"
	"fmt"

	"github.com/caseline/caseline/internal/auth"
)

// Not-found failures surface as 404 at the boundary.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupNotFound = errors.New("group not found")
)

// ForbiddenError is an authenticated-but-insufficient failure carrying a
// short machine-readable code, surfaced as 403.
type ForbiddenError struct {
	Code string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Code
}

// Forbidden codes.
const (
	CodeNotAMember          = "NOT_A_MEMBER"
	CodeMembershipNotActive = "MEMBERSHIP_NOT_ACTIVE"
	CodeOwnerOnly           = "OWNER_ONLY"
)

// MembershipSource is what the checker reads. *Store implements it; tests
// substitute an in-memory version. Absence is reported with ErrUserNotFound
// and ErrMembershipNotFound; any other error is an infrastructure failure
// and passes through unmapped.
type MembershipSource interface {
	GetUserIDByEmail(ctx context.Context, email string) (string, error)
	GroupExists(ctx context.Context, groupID string) (bool, error)
	GetMembership(ctx context.Context, groupID, userID string) (*Membership, error)
}

// Checker answers "may this user act on this group at this role level". It
// only ever reads membership state; every failure terminates the operation.
type Checker struct {
	src MembershipSource
}

// NewChecker creates an access checker over the given membership source.
func NewChecker(src MembershipSource) *Checker {
	return &Checker{src: src}
}

// RequireUser normalizes the email and resolves it to a user ID, failing
// with ErrUserNotFound if unknown. Infrastructure errors pass through so an
// outage does not read as a missing account.
func (c *Checker) RequireUser(ctx context.Context, email string) (string, error) {
	id, err := c.src.GetUserIDByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return "", err
	}
	return id, nil
}

// RequireGroup fails with ErrGroupNotFound if the group does not exist.
func (c *Checker) RequireGroup(ctx context.Context, groupID string) error {
	ok, err := c.src.GroupExists(ctx, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGroupNotFound
	}
	return nil
}

// Membership returns the raw (group, user) row without judging it, for
// callers that need to inspect role or status directly.
func (c *Checker) Membership(ctx context.Context, groupID, userID string) (*Membership, error) {
	return c.src.GetMembership(ctx, groupID, userID)
}

// RequireActiveMember fetches the (group, user) membership and fails unless
// it exists with ACTIVE status. Only genuine absence becomes NOT_A_MEMBER;
// infrastructure errors pass through.
func (c *Checker) RequireActiveMember(ctx context.Context, groupID, userID string) (*Membership, error) {
	m, err := c.src.GetMembership(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			return nil, &ForbiddenError{Code: CodeNotAMember}
		}
		return nil, err
	}
	if m.Status != StatusActive {
		return nil, &ForbiddenError{Code: CodeMembershipNotActive}
	}
	return m, nil
}

// RequireOwner is RequireActiveMember plus an OWNER role check.
func (c *Checker) RequireOwner(ctx context.Context, groupID, userID string) (*Membership, error) {
	m, err := c.RequireActiveMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if m.Role != RoleOwner {
		return nil, &ForbiddenError{Code: CodeOwnerOnly}
	}
	return m, nil
}

// RequireAtLeast fails unless the member's role ranks at or above minRole in
// the OWNER > MAINTAINER > MEMBER order. The comparison is strictly
// rank-based: a member whose rank is below the threshold is rejected, one at
// or above it passes.
func (c *Checker) RequireAtLeast(ctx context.Context, groupID, userID string, minRole Role) (*Membership, error) {
	m, err := c.RequireActiveMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if m.Role.Rank() < minRole.Rank() {
		return nil, &ForbiddenError{Code: fmt.Sprintf("%s_OR_HIGHER_ONLY", minRole)}
	}
	return m, nil
}
