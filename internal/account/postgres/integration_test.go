// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rollcall/rollcall/internal/account"
	"github.com/rollcall/rollcall/internal/account/postgres"
	"github.com/rollcall/rollcall/internal/store"
)

// setupPostgresContainer starts a PostgreSQL container, runs migrations and
// returns a connected pool.
func setupPostgresContainer() (*pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("rollcall_test"),
		tcpostgres.WithUsername("rollcall"),
		tcpostgres.WithPassword("rollcall"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, nil, err
	}

	pool, err := store.NewPool(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return pool, cleanup, nil
}

var _ = Describe("AccountRepository", func() {
	var (
		pool    *pgxpool.Pool
		repo    *postgres.AccountRepository
		cleanup func()
	)

	BeforeEach(func() {
		var err error
		pool, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
		repo = postgres.NewAccountRepository(pool)
	})

	AfterEach(func() {
		cleanup()
	})

	newAccount := func(email string) *account.Account {
		acct, err := account.New("Ada", "Lovelace", email, "stored-hash", account.RoleUser)
		Expect(err).NotTo(HaveOccurred())
		return acct
	}

	Describe("Create and lookup", func() {
		It("round-trips an account through every lookup path", func() {
			ctx := context.Background()
			acct := newAccount("ada@example.com")
			Expect(repo.Create(ctx, acct)).To(Succeed())

			byID, err := repo.GetByID(ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.Email).To(Equal("ada@example.com"))

			byEmail, err := repo.GetByEmail(ctx, "ADA@EXAMPLE.COM")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.ID).To(Equal(acct.ID))

			Expect(repo.UpdateSlug(ctx, acct.ID, "ada-lovelace")).To(Succeed())
			bySlug, err := repo.GetBySlug(ctx, "ada-lovelace")
			Expect(err).NotTo(HaveOccurred())
			Expect(bySlug.ID).To(Equal(acct.ID))
		})

		It("rejects a second account with the same email in any case", func() {
			ctx := context.Background()
			Expect(repo.Create(ctx, newAccount("ada@example.com"))).To(Succeed())

			err := repo.Create(ctx, newAccount("Ada@Example.com"))
			Expect(err).To(MatchError(account.ErrDuplicateEmail))
		})

		It("rejects a duplicate slug via the partial unique index", func() {
			ctx := context.Background()
			first := newAccount("ada@example.com")
			second := newAccount("ada2@example.com")
			Expect(repo.Create(ctx, first)).To(Succeed())
			Expect(repo.Create(ctx, second)).To(Succeed())

			Expect(repo.UpdateSlug(ctx, first.ID, "ada-lovelace")).To(Succeed())
			err := repo.UpdateSlug(ctx, second.ID, "ada-lovelace")
			Expect(err).To(MatchError(account.ErrDuplicateSlug))
		})

		It("returns not found for unknown lookups", func() {
			ctx := context.Background()
			_, err := repo.GetByID(ctx, ulid.Make())
			Expect(err).To(MatchError(account.ErrNotFound))

			_, err = repo.GetByEmail(ctx, "ghost@example.com")
			Expect(err).To(MatchError(account.ErrNotFound))
		})
	})

	Describe("Reset state", func() {
		It("finds the account by digest and clears state on password update", func() {
			ctx := context.Background()
			acct := newAccount("ada@example.com")
			Expect(repo.Create(ctx, acct)).To(Succeed())

			expiry := time.Now().UTC().Add(time.Hour)
			Expect(repo.SetResetState(ctx, acct.ID, "digest-1", expiry)).To(Succeed())

			found, err := repo.GetByResetDigest(ctx, "digest-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(acct.ID))
			Expect(found.ResetExpiresAt).NotTo(BeNil())

			Expect(repo.UpdatePassword(ctx, acct.ID, "new-hash")).To(Succeed())

			_, err = repo.GetByResetDigest(ctx, "digest-1")
			Expect(err).To(MatchError(account.ErrNotFound))

			reloaded, err := repo.GetByID(ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.PasswordHash).To(Equal("new-hash"))
			Expect(reloaded.ResetTokenDigest).To(BeNil())
			Expect(reloaded.ResetExpiresAt).To(BeNil())
		})
	})

	Describe("Verification state", func() {
		It("marks verified and clears the pending code", func() {
			ctx := context.Background()
			acct := newAccount("ada@example.com")
			Expect(repo.Create(ctx, acct)).To(Succeed())

			expiry := time.Now().UTC().Add(10 * time.Minute)
			Expect(repo.SetOtpState(ctx, acct.ID, "123456", expiry)).To(Succeed())

			pending, err := repo.GetByID(ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending.OtpCode).NotTo(BeNil())
			Expect(*pending.OtpCode).To(Equal("123456"))

			Expect(repo.MarkVerified(ctx, acct.ID)).To(Succeed())

			verified, err := repo.GetByID(ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(verified.IsVerified).To(BeTrue())
			Expect(verified.OtpCode).To(BeNil())
			Expect(verified.OtpExpiresAt).To(BeNil())
		})
	})

	Describe("Lifecycle", func() {
		It("blocks, unblocks and deletes", func() {
			ctx := context.Background()
			acct := newAccount("ada@example.com")
			Expect(repo.Create(ctx, acct)).To(Succeed())

			Expect(repo.SetBlocked(ctx, acct.ID, true)).To(Succeed())
			blocked, err := repo.GetByID(ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(blocked.IsBlocked).To(BeTrue())

			Expect(repo.SetBlocked(ctx, acct.ID, false)).To(Succeed())

			Expect(repo.Delete(ctx, acct.ID)).To(Succeed())
			_, err = repo.GetByID(ctx, acct.ID)
			Expect(err).To(MatchError(account.ErrNotFound))
		})

		It("counts and lists accounts in creation order", func() {
			ctx := context.Background()
			Expect(repo.Create(ctx, newAccount("a@example.com"))).To(Succeed())
			Expect(repo.Create(ctx, newAccount("b@example.com"))).To(Succeed())

			n, err := repo.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(2)))

			all, err := repo.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})

		It("stamps the last login time", func() {
			ctx := context.Background()
			acct := newAccount("ada@example.com")
			Expect(repo.Create(ctx, acct)).To(Succeed())

			at := time.Now().UTC().Truncate(time.Microsecond)
			Expect(repo.UpdateLastLogin(ctx, acct.ID, at)).To(Succeed())

			reloaded, err := repo.GetByID(ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.LastLoginAt).NotTo(BeNil())
			Expect(reloaded.LastLoginAt.Equal(at)).To(BeTrue())
		})
	})
})
