package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/caseline/caseline/internal/config"
	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/project"
	"github.com/caseline/caseline/internal/testcase"
	"github.com/caseline/caseline/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a demo user, group, and project with sample test cases",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

var demoCases = []testcase.CreateCaseInput{
	{
		Title:         "Login with valid credentials",
		Preconditions: "A verified account exists",
		Steps: []testcase.Step{
			{Action: "Open the login page", Expected: "Email and password fields are shown"},
			{Action: "Submit valid credentials", Expected: "A session token is returned"},
		},
		ExpectedResult: "The user is logged in",
		Priority:       testcase.PriorityCritical,
	},
	{
		Title:          "Login with wrong password",
		ExpectedResult: "A generic authentication error is shown",
		Priority:       testcase.PriorityHigh,
	},
	{
		Title:          "Password reset link expires",
		Preconditions:  "A reset link older than 30 minutes",
		ExpectedResult: "The link is rejected",
		Priority:       testcase.PriorityMedium,
	},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	userStore := user.NewStore(pool)
	groupStore := group.NewStore(pool)
	projectStore := project.NewStore(pool)
	suiteStore := testcase.NewStore(pool)

	// Check if seed has already run.
	if existing, err := userStore.GetByEmail(ctx, "demo@caseline.local"); err == nil && existing != nil {
		slog.Info("demo data already exists, skipping seed")
		return nil
	}

	u, err := userStore.Create(ctx, user.CreateUserInput{
		Email:    "demo@caseline.local",
		Password: "demo-password",
		Name:     "Demo User",
	})
	if err != nil {
		return fmt.Errorf("creating demo user: %w", err)
	}
	if err := userStore.SetEnabled(ctx, u.ID, true); err != nil {
		return fmt.Errorf("enabling demo user: %w", err)
	}

	if _, err := groupStore.Create(ctx, u.Name, true, u.ID); err != nil {
		return fmt.Errorf("creating personal group: %w", err)
	}
	g, err := groupStore.Create(ctx, "Demo QA Team", false, u.ID)
	if err != nil {
		return fmt.Errorf("creating demo group: %w", err)
	}

	p, err := projectStore.Create(ctx, g.ID, project.CreateProjectInput{
		Name:        "Web Checkout",
		Description: "End-to-end checkout flow for the web storefront.",
	})
	if err != nil {
		return fmt.Errorf("creating demo project: %w", err)
	}

	su, err := suiteStore.CreateSuite(ctx, p.ID, testcase.CreateSuiteInput{
		Name:        "Authentication",
		Description: "Login, registration, and password recovery.",
	})
	if err != nil {
		return fmt.Errorf("creating demo suite: %w", err)
	}

	for _, input := range demoCases {
		c, err := suiteStore.CreateCase(ctx, su.ID, input)
		if err != nil {
			return fmt.Errorf("creating case %q: %w", input.Title, err)
		}
		slog.Info("created test case", "title", c.Title, "id", c.ID)
	}

	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("User:     demo@caseline.local / demo-password\n")
	fmt.Printf("Group:    %s (%s)\n", g.Name, g.ID)
	fmt.Printf("Project:  %s (%s)\n", p.Name, p.ID)
	fmt.Printf("Cases:    %d in suite %q\n", len(demoCases), su.Name)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -X POST http://localhost:8080/api/v1/auth/login -d '{\"email\":\"demo@caseline.local\",\"password\":\"demo-password\"}'\n")

	return nil
}
