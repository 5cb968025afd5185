package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Purpose scopes a verification token to a single out-of-band flow.
type Purpose string

const (
	PurposeEmailVerify   Purpose = "EMAIL_VERIFY"
	PurposePasswordReset Purpose = "PASSWORD_RESET"
	PurposeEmailChange   Purpose = "EMAIL_CHANGE"
	PurposeGroupInvite   Purpose = "GROUP_INVITE"
)

// ErrInvalid is returned for every consumption failure: unknown token, wrong
// purpose, already used, or expired. The causes are deliberately not
// distinguished so a caller probing tokens learns nothing.
var ErrInvalid = errors.New("token invalid or expired")

// VerificationToken is a one-time, purpose-scoped, expiring credential. Only
// the SHA-256 hash of the raw value is ever persisted.
type VerificationToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Purpose   Purpose    `json:"purpose"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewRaw returns a fresh opaque raw token: two random UUIDs joined by a dot.
// The raw value is transmitted once (in an emailed link) and never stored.
func NewRaw() string {
	return uuid.NewString() + "." + uuid.NewString()
}

// Hash returns the lowercase hex SHA-256 digest of a raw token.
func Hash(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
