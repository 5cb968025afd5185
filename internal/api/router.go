package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caseline/caseline/internal/auth"
	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/mail"
	"github.com/caseline/caseline/internal/metrics"
	"github.com/caseline/caseline/internal/ratelimit"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users      UserStore
	Groups     GroupStore
	Invites    InviteStore
	Projects   ProjectStore
	Suites     SuiteStore
	Milestones MilestoneStore
	Runs       RunStore
	Jira       JiraStore
	JiraClient JiraClient
	PATs       PATService
	Tokens     TokenService
	JWT        JWTIssuer
	Resolver   *auth.Resolver
	Checker    *group.Checker
	Mailer     mail.Mailer
	Limiter    *ratelimit.Limiter
	Metrics    *metrics.Metrics

	AllowedOrigins []string
	TTLs           TokenTTLs
	BaseURL        string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware. Authentication runs last so every route below sees a
	// resolved identity unless its path is in auth.PublicRoutes.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}
	r.Use(auth.Middleware(deps.Resolver))

	// Handlers.
	g := &guard{
		checker:    deps.Checker,
		projects:   deps.Projects,
		suites:     deps.Suites,
		cases:      deps.Suites,
		runs:       deps.Runs,
		milestones: deps.Milestones,
	}
	authH := newAuthHandler(deps.Users, deps.Groups, deps.Tokens, deps.JWT, deps.Mailer, deps.TTLs, deps.BaseURL)
	pats := newPATHandler(deps.PATs)
	groups := newGroupHandler(deps.Groups, g)
	invites := newInviteHandler(deps.Invites, deps.Groups, deps.Users, g, deps.Mailer, deps.TTLs.Invite, deps.BaseURL)
	projects := newProjectHandler(deps.Projects, g)
	suites := newSuiteHandler(deps.Suites, g)
	milestones := newMilestoneHandler(deps.Milestones, g)
	runs := newRunHandler(deps.Runs, g)
	jiraH := newJiraHandler(deps.Jira, deps.JiraClient, deps.Runs, deps.Suites, g)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Well-known manifest.
	r.Get("/.well-known/caseline.json", WellKnownHandler)

	// Prometheus scrape endpoint.
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	// Abusable public endpoints get per-IP rate limiting.
	limited := func(purpose string) func(http.Handler) http.Handler {
		var onReject []func()
		if deps.Metrics != nil {
			onReject = append(onReject, func() { deps.Metrics.IncRateLimitRejection(purpose) })
		}
		return ratelimit.Middleware(deps.Limiter, purpose, ratelimit.ByClientIP, onReject...)
	}

	// Public (unauthenticated) routes.
	r.With(limited("register")).Post("/api/v1/auth/register", authH.Register)
	r.With(limited("login")).Post("/api/v1/auth/login", authH.Login)
	r.Post("/api/v1/auth/verify-email", authH.VerifyEmail)
	r.With(limited("password-reset")).Post("/api/v1/auth/password-reset", authH.RequestPasswordReset)
	r.Post("/api/v1/auth/password-reset/confirm", authH.ConfirmPasswordReset)
	r.Post("/api/v1/invitations/accept", invites.AcceptInvite)

	// Authenticated routes.
	r.Route("/api/v1", func(ar chi.Router) {
		// Account.
		ar.Get("/auth/me", authH.Me)
		ar.Post("/auth/email-change", authH.RequestEmailChange)
		ar.Post("/auth/email-change/confirm", authH.ConfirmEmailChange)

		// Personal access tokens.
		ar.Post("/tokens", pats.CreateToken)
		ar.Get("/tokens", pats.ListTokens)
		ar.Delete("/tokens/{id}", pats.RevokeToken)

		// Groups and membership.
		ar.Post("/groups", groups.CreateGroup)
		ar.Get("/groups", groups.ListGroups)
		ar.Get("/groups/{groupID}", groups.GetGroup)
		ar.Put("/groups/{groupID}", groups.UpdateGroup)
		ar.Delete("/groups/{groupID}", groups.DeleteGroup)
		ar.Get("/groups/{groupID}/members", groups.ListMembers)
		ar.Put("/groups/{groupID}/members/{userID}", groups.UpdateMemberRole)
		ar.Delete("/groups/{groupID}/members/{userID}", groups.RemoveMember)

		// Invitations.
		ar.Post("/groups/{groupID}/invitations", invites.CreateInvite)
		ar.Get("/groups/{groupID}/invitations", invites.ListInvites)
		ar.Delete("/groups/{groupID}/invitations/{inviteID}", invites.CancelInvite)

		// Projects.
		ar.Post("/groups/{groupID}/projects", projects.CreateProject)
		ar.Get("/groups/{groupID}/projects", projects.ListProjects)
		ar.Get("/projects/{projectID}", projects.GetProject)
		ar.Put("/projects/{projectID}", projects.UpdateProject)
		ar.Delete("/projects/{projectID}", projects.DeleteProject)

		// Suites and cases.
		ar.Post("/projects/{projectID}/suites", suites.CreateSuite)
		ar.Get("/projects/{projectID}/suites", suites.ListSuites)
		ar.Get("/suites/{suiteID}", suites.GetSuite)
		ar.Put("/suites/{suiteID}", suites.UpdateSuite)
		ar.Delete("/suites/{suiteID}", suites.DeleteSuite)
		ar.Post("/suites/{suiteID}/cases", suites.CreateCase)
		ar.Get("/suites/{suiteID}/cases", suites.ListCases)
		ar.Get("/cases/{caseID}", suites.GetCase)
		ar.Put("/cases/{caseID}", suites.UpdateCase)
		ar.Delete("/cases/{caseID}", suites.DeleteCase)

		// Milestones.
		ar.Post("/projects/{projectID}/milestones", milestones.CreateMilestone)
		ar.Get("/projects/{projectID}/milestones", milestones.ListMilestones)
		ar.Get("/milestones/{milestoneID}", milestones.GetMilestone)
		ar.Put("/milestones/{milestoneID}", milestones.UpdateMilestone)
		ar.Delete("/milestones/{milestoneID}", milestones.DeleteMilestone)

		// Runs and results.
		ar.Post("/projects/{projectID}/runs", runs.CreateRun)
		ar.Get("/projects/{projectID}/runs", runs.ListRuns)
		ar.Get("/runs/{runID}", runs.GetRun)
		ar.Post("/runs/{runID}/close", runs.CloseRun)
		ar.Delete("/runs/{runID}", runs.DeleteRun)
		ar.Post("/runs/{runID}/results", runs.RecordResult)
		ar.Get("/runs/{runID}/results", runs.ListResults)
		ar.Get("/runs/{runID}/summary", runs.GetSummary)

		// Jira integration.
		ar.Put("/projects/{projectID}/jira", jiraH.PutBinding)
		ar.Get("/projects/{projectID}/jira", jiraH.GetBinding)
		ar.Delete("/projects/{projectID}/jira", jiraH.DeleteBinding)
		ar.Post("/runs/{runID}/push-failures", jiraH.PushFailures)

		// Admin routes.
		ar.Route("/admin", func(adm chi.Router) {
			adm.Use(auth.RequireAdmin)
			if deps.Metrics != nil {
				adm.Get("/metrics", deps.Metrics.Handler())
			}
		})
	})

	return r
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}
