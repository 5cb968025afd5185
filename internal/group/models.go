package group

import "time"

// Role is a member's privilege level within a group.
type Role string

const (
	RoleOwner      Role = "OWNER"
	RoleMaintainer Role = "MAINTAINER"
	RoleMember     Role = "MEMBER"
)

// roleRanks is the total order used by "at least this privileged" checks.
var roleRanks = map[Role]int{
	RoleOwner:      3,
	RoleMaintainer: 2,
	RoleMember:     1,
}

// Rank returns the role's position in the privilege order, 0 for unknown
// roles so they never satisfy any threshold.
func (r Role) Rank() int {
	return roleRanks[r]
}

// Valid reports whether r is one of the three defined roles.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// AtLeast reports whether r is as privileged as min or more. The comparison
// is the single piece of policy behind every role gate.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() >= min.Rank()
}

// Status is a membership's lifecycle state. Access control only reads it;
// transitions are driven by the invitation and removal workflows.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusPending Status = "PENDING"
	StatusRemoved Status = "REMOVED"
)

// Group is a collaborative container for projects. Personal groups are
// created automatically with their user and cannot be deleted.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Personal  bool      `json:"personal"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership is the (group, user) relation carrying role and status. At most
// one row exists per pair.
type Membership struct {
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a membership joined with user display fields for listings.
type Member struct {
	Membership
	Email string `json:"email"`
	Name  string `json:"name"`
}

// InviteStatus is a group invitation's lifecycle state.
type InviteStatus string

const (
	InvitePending   InviteStatus = "PENDING"
	InviteAccepted  InviteStatus = "ACCEPTED"
	InviteCancelled InviteStatus = "CANCELLED"
	InviteExpired   InviteStatus = "EXPIRED"
)

// Invitation is a pending offer to join a group, addressed to an email. Only
// the hash of its raw token is stored; the raw value travels in the invite
// email. At most one PENDING invitation exists per (group, email).
type Invitation struct {
	ID        string       `json:"id"`
	GroupID   string       `json:"group_id"`
	Email     string       `json:"email"`
	Role      Role         `json:"role"`
	TokenHash string       `json:"-"`
	Status    InviteStatus `json:"status"`
	ExpiresAt time.Time    `json:"expires_at"`
	CreatedAt time.Time    `json:"created_at"`
}
