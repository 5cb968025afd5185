package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/caseline/caseline/internal/auth"
	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/mail"
	"github.com/caseline/caseline/internal/token"
	"github.com/caseline/caseline/internal/user"
)

// UserStore is the user persistence surface the auth handlers need.
type UserStore interface {
	Create(ctx context.Context, in user.CreateUserInput) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	UpdatePassword(ctx context.Context, id, password string) error
	SetPendingEmail(ctx context.Context, id, email string) error
	ConfirmPendingEmail(ctx context.Context, id string) error
}

// GroupCreator creates the personal group a registration brings with it.
type GroupCreator interface {
	Create(ctx context.Context, name string, personal bool, ownerID string) (*group.Group, error)
}

// TokenService issues and consumes one-time verification tokens.
type TokenService interface {
	Issue(ctx context.Context, userID string, purpose token.Purpose, ttl time.Duration) (string, error)
	Consume(ctx context.Context, raw string, purpose token.Purpose) (string, error)
}

// JWTIssuer signs session tokens.
type JWTIssuer interface {
	Generate(subject string, extra map[string]interface{}) (string, error)
}

// TokenTTLs carries the per-purpose lifetimes for emailed tokens.
type TokenTTLs struct {
	Verify      time.Duration
	Password    time.Duration
	EmailChange time.Duration
	Invite      time.Duration
}

// authHandler groups registration, login, and account verification handlers.
type authHandler struct {
	users   UserStore
	groups  GroupCreator
	tokens  TokenService
	jwt     JWTIssuer
	mailer  mail.Mailer
	ttls    TokenTTLs
	baseURL string
}

func newAuthHandler(users UserStore, groups GroupCreator, tokens TokenService, jwt JWTIssuer, mailer mail.Mailer, ttls TokenTTLs, baseURL string) *authHandler {
	return &authHandler{
		users:   users,
		groups:  groups,
		tokens:  tokens,
		jwt:     jwt,
		mailer:  mailer,
		ttls:    ttls,
		baseURL: baseURL,
	}
}

// Register handles POST /api/v1/auth/register. The account starts disabled;
// a verification link is emailed and login works only after it is consumed.
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req user.CreateUserInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "password must be at least 8 characters")
		return
	}

	if existing, err := h.users.GetByEmail(r.Context(), req.Email); err == nil && existing != nil {
		writeError(w, http.StatusConflict, "conflict", "email is already registered")
		return
	}

	u, err := h.users.Create(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create user")
		return
	}

	groupName := u.Name
	if groupName == "" {
		groupName = u.Email
	}
	if _, err := h.groups.Create(r.Context(), groupName, true, u.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create personal group")
		return
	}

	raw, err := h.tokens.Issue(r.Context(), u.ID, token.PurposeEmailVerify, h.ttls.Verify)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue verification token")
		return
	}
	h.send(r.Context(), mail.VerificationMessage(u.Email, h.baseURL, raw))

	auditLog(r, "register", "user", u.ID)
	writeJSON(w, http.StatusCreated, u)
}

// Login handles POST /api/v1/auth/login. Bad email and bad password are
// indistinguishable; an unverified account is told why it cannot log in.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil || u == nil || !user.CheckPassword(u, req.Password) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}
	if !u.Enabled {
		writeError(w, http.StatusForbidden, "email_not_verified", "verify your email address before logging in")
		return
	}

	jwt, err := h.jwt.Generate(u.Email, map[string]interface{}{"name": u.Name})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue session token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": jwt,
		"user":  u,
	})
}

// VerifyEmail handles POST /api/v1/auth/verify-email. Consuming the token
// enables the account; a second call with the same token fails.
func (h *authHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	userID, err := h.tokens.Consume(r.Context(), req.Token, token.PurposeEmailVerify)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.users.SetEnabled(r.Context(), userID, true); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to enable account")
		return
	}

	auditLog(r, "verify_email", "user", userID)
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset. The response
// is 204 whether or not the address exists.
func (h *authHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if u, err := h.users.GetByEmail(r.Context(), req.Email); err == nil && u != nil {
		raw, err := h.tokens.Issue(r.Context(), u.ID, token.PurposePasswordReset, h.ttls.Password)
		if err == nil {
			h.send(r.Context(), mail.PasswordResetMessage(u.Email, h.baseURL, raw))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// ConfirmPasswordReset handles POST /api/v1/auth/password-reset/confirm.
func (h *authHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "password must be at least 8 characters")
		return
	}

	userID, err := h.tokens.Consume(r.Context(), req.Token, token.PurposePasswordReset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.users.UpdatePassword(r.Context(), userID, req.Password); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update password")
		return
	}

	auditLog(r, "password_reset", "user", userID)
	w.WriteHeader(http.StatusNoContent)
}

// RequestEmailChange handles POST /api/v1/auth/email-change. The confirmation
// link goes to the new address; nothing changes until it is consumed.
func (h *authHandler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	var req struct {
		NewEmail string `json:"new_email"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.NewEmail == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "new_email is required")
		return
	}
	if taken, err := h.users.GetByEmail(r.Context(), req.NewEmail); err == nil && taken != nil {
		writeError(w, http.StatusConflict, "conflict", "email is already registered")
		return
	}

	if err := h.users.SetPendingEmail(r.Context(), id.UserID, req.NewEmail); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to record pending email")
		return
	}
	raw, err := h.tokens.Issue(r.Context(), id.UserID, token.PurposeEmailChange, h.ttls.EmailChange)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue email change token")
		return
	}
	h.send(r.Context(), mail.EmailChangeMessage(auth.NormalizeEmail(req.NewEmail), h.baseURL, raw))

	auditLog(r, "request_email_change", "user", id.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// ConfirmEmailChange handles POST /api/v1/auth/email-change/confirm.
func (h *authHandler) ConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	userID, err := h.tokens.Consume(r.Context(), req.Token, token.PurposeEmailChange)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.users.ConfirmPendingEmail(r.Context(), userID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to apply email change")
		return
	}

	auditLog(r, "confirm_email_change", "user", userID)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	u, err := h.users.GetByID(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// send delivers an email without failing the request. Delivery problems are
// logged; the token can be reissued.
func (h *authHandler) send(ctx context.Context, msg mail.Message) {
	if err := h.mailer.Send(ctx, msg); err != nil {
		slog.Error("failed to send mail", "to", msg.To, "subject", msg.Subject, "error", err)
	}
}
