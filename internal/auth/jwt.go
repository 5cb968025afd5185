package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretBytes is the smallest signing secret that is not flagged as weak.
const minSecretBytes = 32

// ErrInvalidToken is returned for any JWT verification failure. Callers must
// treat it as "unauthenticated" without exposing the cause.
var ErrInvalidToken = errors.New("invalid or expired token")

// JWTService issues and verifies short-lived HS256 bearer tokens whose
// subject is the holder's normalized email. Symmetric signing is enough:
// issuance and verification happen in the same process.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time // injectable clock for testing
}

// NewJWTService creates a JWT service. A secret shorter than 32 bytes is an
// accepted operational risk: it logs a warning but does not refuse to start.
func NewJWTService(secret string, ttl time.Duration) *JWTService {
	if len(secret) < minSecretBytes {
		slog.Warn("jwt signing secret is shorter than 32 bytes; consider rotating to a stronger key",
			"length", len(secret))
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate signs a token asserting the given subject. The subject is
// normalized before embedding. Extra claims may not override the registered
// sub/iat/exp claims.
func (s *JWTService) Generate(subject string, extra map[string]any) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["sub"] = NormalizeEmail(subject)
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(s.ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ExtractSubject verifies the token's signature and expiry and returns its
// subject claim. Malformed, forged, and expired tokens all yield
// ErrInvalidToken.
func (s *JWTService) ExtractSubject(tokenString string) (string, error) {
	parsed, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// NormalizeEmail canonicalizes an email for use as an identity: trimmed and
// lower-cased. Every comparison and storage of emails goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
