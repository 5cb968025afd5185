package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// --- mocks ---

type mockPATAuth struct {
	tokens map[string]string // raw token -> owner email
}

func (m *mockPATAuth) Authenticate(ctx context.Context, tokenString string) (string, error) {
	email, ok := m.tokens[tokenString]
	if !ok {
		return "", errors.New("token not found or revoked")
	}
	return email, nil
}

type mockIdentityLookup struct {
	identities map[string]*Identity
}

func (m *mockIdentityLookup) LookupByEmail(ctx context.Context, email string) (*Identity, error) {
	id, ok := m.identities[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return id, nil
}

// --- ClassifyCredential tests ---

func TestClassifyCredential(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want CredentialKind
	}{
		{"pat token", "pat_abc123.def456", CredentialPAT},
		{"jwt token", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ4In0.sig", CredentialJWT},
		{"bare pat marker", "pat_", CredentialPAT},
		{"pat marker mid-string", "xpat_abc.def", CredentialJWT},
		{"empty", "", CredentialJWT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyCredential(tt.raw)
			if got.Kind != tt.want {
				t.Errorf("expected kind %v, got %v", tt.want, got.Kind)
			}
			if got.Value != tt.raw {
				t.Errorf("classification must not alter the value: got %q", got.Value)
			}
		})
	}
}

// --- IsPublic tests ---

func TestIsPublic(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/metrics", true},
		{"/api/v1/auth/login", true},
		{"/api/v1/auth/register", true},
		{"/api/v1/auth/password-reset", true},
		{"/api/v1/auth/password-reset/confirm", true},
		{"/api/v1/invitations/accept", true},
		{"/api/v1/auth/me", false},
		{"/api/v1/groups", false},
		{"/api/v1/tokens", false},
		{"/healthz", false},
	}

	for _, tt := range tests {
		if got := IsPublic(tt.path); got != tt.want {
			t.Errorf("IsPublic(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// --- Identity context tests ---

func TestIdentityContextRoundTrip(t *testing.T) {
	id := &Identity{UserID: "u1", Email: "user@example.com", Name: "User"}
	ctx := ContextWithIdentity(context.Background(), id)
	got := IdentityFromContext(ctx)
	if got == nil {
		t.Fatal("expected identity from context, got nil")
	}
	if got.Email != id.Email {
		t.Errorf("expected email %q, got %q", id.Email, got.Email)
	}
}

func TestIdentityFromContextEmpty(t *testing.T) {
	if got := IdentityFromContext(context.Background()); got != nil {
		t.Errorf("expected nil from empty context, got %+v", got)
	}
}

// --- Middleware tests ---

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()

	jwtSvc := NewJWTService("0123456789abcdef0123456789abcdef", time.Hour)
	sessionToken, err := jwtSvc.Generate("user@example.com", nil)
	if err != nil {
		t.Fatalf("generating jwt: %v", err)
	}

	pats := &mockPATAuth{tokens: map[string]string{
		"pat_knownprefix.knownsecret": "robot@example.com",
	}}
	users := &mockIdentityLookup{identities: map[string]*Identity{
		"user@example.com":  {UserID: "u1", Email: "user@example.com"},
		"robot@example.com": {UserID: "u2", Email: "robot@example.com"},
	}}

	return NewResolver(jwtSvc, pats, users), sessionToken
}

func TestMiddlewareDualScheme(t *testing.T) {
	res, sessionToken := newTestResolver(t)

	var gotIdentity *Identity
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantEmail  string
		wantScheme CredentialKind
	}{
		{
			name:       "valid jwt",
			authHeader: "Bearer " + sessionToken,
			wantStatus: http.StatusOK,
			wantEmail:  "user@example.com",
			wantScheme: CredentialJWT,
		},
		{
			name:       "valid pat",
			authHeader: "Bearer pat_knownprefix.knownsecret",
			wantStatus: http.StatusOK,
			wantEmail:  "robot@example.com",
			wantScheme: CredentialPAT,
		},
		{
			name:       "unknown pat",
			authHeader: "Bearer pat_unknown.secret",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage jwt",
			authHeader: "Bearer not-a-jwt",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			authHeader: "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotIdentity = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			Middleware(res)(okHandler).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantStatus == http.StatusOK {
				if gotIdentity == nil {
					t.Fatal("expected identity in context")
				}
				if gotIdentity.Email != tt.wantEmail {
					t.Errorf("expected email %q, got %q", tt.wantEmail, gotIdentity.Email)
				}
				if gotIdentity.Scheme != tt.wantScheme {
					t.Errorf("expected scheme %v, got %v", tt.wantScheme, gotIdentity.Scheme)
				}
			} else {
				assertUnauthorizedJSON(t, rr)
			}
		})
	}
}

func TestMiddlewareSkipsPublicPaths(t *testing.T) {
	res, _ := newTestResolver(t)

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) != nil {
			t.Error("public path should not carry an identity")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	rr := httptest.NewRecorder()

	Middleware(res)(okHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected public path to pass without credentials, got %d", rr.Code)
	}
}

func TestMiddlewareRejectsDisabledSubject(t *testing.T) {
	jwtSvc := NewJWTService("0123456789abcdef0123456789abcdef", time.Hour)
	tok, err := jwtSvc.Generate("ghost@example.com", nil)
	if err != nil {
		t.Fatalf("generating jwt: %v", err)
	}

	// Lookup knows no one: a valid signature over a missing or disabled
	// account still fails closed.
	res := NewResolver(jwtSvc, &mockPATAuth{}, &mockIdentityLookup{identities: map[string]*Identity{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()

	Middleware(res)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		identity   *Identity
		wantStatus int
	}{
		{"admin", &Identity{UserID: "u1", Admin: true}, http.StatusOK},
		{"non-admin", &Identity{UserID: "u2"}, http.StatusForbidden},
		{"unauthenticated", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/metrics", nil)
			if tt.identity != nil {
				req = req.WithContext(ContextWithIdentity(req.Context(), tt.identity))
			}
			rr := httptest.NewRecorder()

			RequireAdmin(okHandler).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

// assertUnauthorizedJSON checks the uniform 401 error envelope.
func assertUnauthorizedJSON(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()

	ct := rr.Header().Get("Content-Type")
	if !strings.Contains(ct, "application/json") {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Code != "unauthorized" {
		t.Errorf("expected error code 'unauthorized', got %q", resp.Error.Code)
	}
	if resp.Error.Message == "" {
		t.Error("expected non-empty error message")
	}
}
