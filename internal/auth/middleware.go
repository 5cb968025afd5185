package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey int

const identityContextKey contextKey = iota

// Identity is the authenticated principal a request acts as. Both credential
// schemes converge to this one shape.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Admin  bool
	Scheme CredentialKind
}

// ContextWithIdentity returns a new context carrying the given identity.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext extracts the identity from the context, or nil if not present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey).(*Identity)
	return id
}

// PATAuthenticator resolves a raw personal access token to an owner email.
type PATAuthenticator interface {
	Authenticate(ctx context.Context, tokenString string) (string, error)
}

// IdentityLookup loads the identity for a normalized email. Implementations
// must reject disabled accounts.
type IdentityLookup interface {
	LookupByEmail(ctx context.Context, email string) (*Identity, error)
}

// MetricsRecorder is an optional sink for auth outcome counters.
type MetricsRecorder interface {
	IncAuthSuccess(scheme string)
	IncAuthFailure(scheme string)
}

// Resolver turns an inbound bearer credential into an identity. It owns the
// dual-scheme dispatch: classify once, then route to the PAT service or the
// JWT verifier.
type Resolver struct {
	jwt     *JWTService
	pats    PATAuthenticator
	users   IdentityLookup
	metrics MetricsRecorder
}

// NewResolver creates a resolver over the two credential validators.
func NewResolver(jwtSvc *JWTService, pats PATAuthenticator, users IdentityLookup) *Resolver {
	return &Resolver{jwt: jwtSvc, pats: pats, users: users}
}

// SetMetrics sets the optional metrics recorder.
func (r *Resolver) SetMetrics(m MetricsRecorder) {
	r.metrics = m
}

// Resolve validates the credential and returns the identity it asserts. The
// granular cause of a failure is logged, never returned: all failures look
// identical to the client.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Identity, error) {
	cred := ClassifyCredential(raw)

	var email string
	var err error
	switch cred.Kind {
	case CredentialPAT:
		email, err = r.pats.Authenticate(ctx, cred.Value)
	default:
		email, err = r.jwt.ExtractSubject(cred.Value)
	}
	if err != nil {
		r.fail(cred.Kind)
		slog.Debug("credential rejected", "scheme", cred.Kind.String(), "error", err)
		return nil, ErrInvalidToken
	}

	id, err := r.users.LookupByEmail(ctx, NormalizeEmail(email))
	if err != nil || id == nil {
		r.fail(cred.Kind)
		slog.Debug("credential subject has no active account", "scheme", cred.Kind.String())
		return nil, ErrInvalidToken
	}

	id.Scheme = cred.Kind
	if r.metrics != nil {
		r.metrics.IncAuthSuccess(cred.Kind.String())
	}
	return id, nil
}

func (r *Resolver) fail(kind CredentialKind) {
	if r.metrics != nil {
		r.metrics.IncAuthFailure(kind.String())
	}
}

// Middleware returns middleware that authenticates every request except
// those matching PublicRoutes. On success the identity is injected into the
// request context; on failure the request terminates with a uniform 401.
func Middleware(res *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			raw := extractBearerToken(r)
			if raw == "" {
				writeUnauthorized(w, "missing or malformed authorization header")
				return
			}

			id, err := res.Resolve(r.Context(), raw)
			if err != nil {
				writeUnauthorized(w, "invalid or expired credential")
				return
			}

			ctx := ContextWithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns middleware that rejects non-admin identities. It must
// run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil {
			writeUnauthorized(w, "not authenticated")
			return
		}
		if !id.Admin {
			writeForbidden(w, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Code:    "unauthorized",
			Message: message,
		},
	})
}

func writeForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Code:    "forbidden",
			Message: message,
		},
	})
}
