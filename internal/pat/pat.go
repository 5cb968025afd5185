package pat

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"time"
)

const (
	// tokenMarker prefixes every personal access token so the auth boundary
	// can classify credentials without parsing them.
	tokenMarker = "pat_"

	prefixBytes = 8  // -> 11 base64url chars, stored cleartext as lookup key
	secretBytes = 24 // -> 32 base64url chars, stored only as a bcrypt hash
)

// tokenPattern is the fixed grammar pat_<prefix>.<secret>, both parts
// unpadded base64url.
var tokenPattern = regexp.MustCompile(`^pat_([A-Za-z0-9_-]+)\.([A-Za-z0-9_-]+)$`)

// Authentication failures are granular internally for diagnosis; the HTTP
// boundary collapses all of them into one uniform 401.
var (
	ErrMalformedToken = errors.New("malformed token")
	ErrNotFound       = errors.New("token not found or revoked")
	ErrBadSecret      = errors.New("invalid token secret")
	ErrNotOwner       = errors.New("token belongs to another user")
)

// Token is a long-lived revocable credential for non-interactive clients.
// The secret component is never stored or returned; only its hash persists.
type Token struct {
	ID         string     `json:"id"`
	UserID     string     `json:"-"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	SecretHash string     `json:"-"`
	Scopes     []string   `json:"scopes"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the token can still authenticate.
func (t *Token) Active() bool {
	return t.RevokedAt == nil
}

// generateParts returns fresh random prefix and secret strings.
func generateParts() (prefix, secret string, err error) {
	pb := make([]byte, prefixBytes)
	if _, err := rand.Read(pb); err != nil {
		return "", "", fmt.Errorf("generating prefix: %w", err)
	}
	sb := make([]byte, secretBytes)
	if _, err := rand.Read(sb); err != nil {
		return "", "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(pb), base64.RawURLEncoding.EncodeToString(sb), nil
}

// parseToken validates the token grammar and splits it into prefix and
// secret. It fails fast so nothing malformed reaches the database.
func parseToken(s string) (prefix, secret string, err error) {
	m := tokenPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", ErrMalformedToken
	}
	return m[1], m[2], nil
}

// assemble builds the full raw token handed to the caller exactly once.
func assemble(prefix, secret string) string {
	return tokenMarker + prefix + "." + secret
}
