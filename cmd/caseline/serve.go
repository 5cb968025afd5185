package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/caseline/caseline/internal/api"
	"github.com/caseline/caseline/internal/auth"
	"github.com/caseline/caseline/internal/config"
	"github.com/caseline/caseline/internal/crypto"
	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/janitor"
	"github.com/caseline/caseline/internal/jira"
	"github.com/caseline/caseline/internal/mail"
	"github.com/caseline/caseline/internal/metrics"
	"github.com/caseline/caseline/internal/milestone"
	"github.com/caseline/caseline/internal/pat"
	"github.com/caseline/caseline/internal/project"
	"github.com/caseline/caseline/internal/ratelimit"
	"github.com/caseline/caseline/internal/run"
	"github.com/caseline/caseline/internal/testcase"
	"github.com/caseline/caseline/internal/token"
	"github.com/caseline/caseline/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Caseline API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	cipher, err := crypto.NewCipher(cfg.Auth.EncryptionKey)
	if err != nil {
		return err
	}
	if cipher == nil {
		slog.Warn("no encryption key configured; integration credentials are stored in plaintext")
	}

	// Stores.
	userStore := user.NewStore(pool)
	groupStore := group.NewStore(pool)
	inviteStore := group.NewInviteStore(pool)
	tokenStore := token.NewStore(pool)
	patStore := pat.NewStore(pool)
	projectStore := project.NewStore(pool)
	suiteStore := testcase.NewStore(pool)
	milestoneStore := milestone.NewStore(pool)
	runStore := run.NewStore(pool)
	jiraStore := jira.NewStore(pool, cipher)

	// Services.
	tokenService := token.NewService(tokenStore)
	patService := pat.NewService(patStore)
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
	resolver := auth.NewResolver(jwtService, patService, user.NewAuthAdapter(userStore))
	checker := group.NewChecker(groupStore)
	limiter := ratelimit.New(cfg.RateLimit.Default, cfg.RateLimit.Window)

	var mailer mail.Mailer
	if cfg.Mail.SMTPAddr != "" {
		mailer = mail.NewSMTPMailer(cfg.Mail.SMTPAddr, cfg.Mail.From)
	} else {
		slog.Warn("no smtp relay configured; outgoing mail is logged only")
		mailer = mail.NewLogMailer(logger)
	}

	jiraClient := jira.NewClient(cfg.Jira.Timeout)

	// Metrics.
	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		st := pool.Stat()
		return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
	})
	resolver.SetMetrics(m)
	jiraClient.SetMetrics(m)

	// Background cleanup of expired tokens and stale invitations.
	jan := janitor.New(tokenService, inviteStore, cfg.Janitor.Interval)
	jan.SetMetrics(m)
	go jan.Start(ctx)

	router := api.NewRouter(api.RouterDeps{
		Users:      userStore,
		Groups:     groupStore,
		Invites:    inviteStore,
		Projects:   projectStore,
		Suites:     suiteStore,
		Milestones: milestoneStore,
		Runs:       runStore,
		Jira:       jiraStore,
		JiraClient: jiraClient,
		PATs:       patService,
		Tokens:     tokenService,
		JWT:        jwtService,
		Resolver:   resolver,
		Checker:    checker,
		Mailer:     mailer,
		Limiter:    limiter,
		Metrics:    m,

		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TTLs: api.TokenTTLs{
			Verify:      cfg.Tokens.VerifyTTL,
			Password:    cfg.Tokens.PasswordTTL,
			EmailChange: cfg.Tokens.EmailChangeTTL,
			Invite:      cfg.Tokens.InviteTTL,
		},
		BaseURL: cfg.Mail.BaseURL,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	jan.Stop()

	return srv.Shutdown(shutdownCtx)
}
