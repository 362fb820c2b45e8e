// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/rollcall/rollcall/internal/account"
	acctpg "github.com/rollcall/rollcall/internal/account/postgres"
	"github.com/rollcall/rollcall/internal/credential"
	"github.com/rollcall/rollcall/internal/store"
)

// Default timeout for the seed-admin command.
const defaultSeedTimeout = 30 * time.Second

// seedAdminConfig holds configuration for the seed-admin command.
type seedAdminConfig struct {
	email     string
	password  string
	firstName string
	lastName  string
	timeout   time.Duration
}

// NewSeedAdminCmd creates the seed-admin subcommand.
func NewSeedAdminCmd() *cobra.Command {
	cfg := &seedAdminConfig{}

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the initial elevated admin account",
		Long: `Creates an elevated admin account with the given credentials.
This command is idempotent - an existing account under the same email is
left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeedAdmin(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.email, "email", "", "admin email address (required)")
	cmd.Flags().StringVar(&cfg.password, "password", "", "admin password (required)")
	cmd.Flags().StringVar(&cfg.firstName, "first-name", "Platform", "admin first name")
	cmd.Flags().StringVar(&cfg.lastName, "last-name", "Admin", "admin last name")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runSeedAdmin(cmd *cobra.Command, _ []string, cfg *seedAdminConfig) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals.
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.NewPool(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	cmd.Println("Running migrations...")
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}

	repo := acctpg.NewAccountRepository(pool)

	hasher, err := credential.NewBcryptHasher(credential.DefaultBcryptCost)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(cfg.password)
	if err != nil {
		return err
	}

	admin, err := account.New(cfg.firstName, cfg.lastName, cfg.email, hash, account.RoleAdmin)
	if err != nil {
		return err
	}
	admin.IsAdmin = true
	admin.IsVerified = true

	if err := repo.Create(ctx, admin); err != nil {
		// An existing account under this email is left untouched.
		if errors.Is(err, account.ErrDuplicateEmail) {
			cmd.Println("Admin account already exists, skipping seed")
			slog.Info("admin already seeded", "email", cfg.email)
			return nil
		}
		return err
	}

	slugs, err := account.NewSlugAllocator(repo)
	if err != nil {
		return err
	}
	if _, err := slugs.Allocate(ctx, admin); err != nil {
		return err
	}

	cmd.Printf("Created admin account: %s\n", cfg.email)
	slog.Info("admin account seeded", "id", admin.ID.String(), "email", cfg.email)

	cmd.Println("Admin seeding complete!")
	return nil
}
