// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package credential_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/internal/account"
	"github.com/rollcall/rollcall/internal/account/mocks"
	"github.com/rollcall/rollcall/internal/credential"
	"github.com/rollcall/rollcall/pkg/errutil"
)

func TestGenerateOtpCode(t *testing.T) {
	for range 50 {
		code, err := credential.GenerateOtpCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.GreaterOrEqual(t, code, "100000")
		assert.LessOrEqual(t, code, "999999")
	}
}

func TestNewOtpIssuer_NilRepository(t *testing.T) {
	issuer, err := credential.NewOtpIssuer(nil)
	require.Error(t, err)
	assert.Nil(t, issuer)
	errutil.AssertErrorCode(t, err, "OTP_ISSUER_INVALID")
}

func TestOtpIssuer_Issue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("stores code with ten-minute expiry", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		issuer, err := credential.NewOtpIssuerWithClock(repo, func() time.Time { return now })
		require.NoError(t, err)

		id := ulid.Make()
		var stored string
		repo.On("SetOtpState", ctx, id, mock.AnythingOfType("string"), now.Add(credential.OtpExpiry)).
			Run(func(args mock.Arguments) { stored = args.String(2) }).
			Return(nil)

		code, err := issuer.Issue(ctx, id)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Equal(t, code, stored)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		issuer, err := credential.NewOtpIssuerWithClock(repo, func() time.Time { return now })
		require.NoError(t, err)

		id := ulid.Make()
		repo.On("SetOtpState", ctx, id, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
			Return(errors.New("connection refused"))

		code, err := issuer.Issue(ctx, id)
		require.Error(t, err)
		assert.Empty(t, code)
		errutil.AssertErrorCode(t, err, "OTP_ISSUE_FAILED")
	})
}

func TestOtpIssuer_Consume(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	pendingAccount := func(code string, expiresAt time.Time) *account.Account {
		return &account.Account{
			ID:           ulid.Make(),
			Email:        "ada@example.com",
			OtpCode:      &code,
			OtpExpiresAt: &expiresAt,
		}
	}

	newIssuer := func(t *testing.T, repo account.Repository) *credential.OtpIssuer {
		t.Helper()
		issuer, err := credential.NewOtpIssuerWithClock(repo, func() time.Time { return now })
		require.NoError(t, err)
		return issuer
	}

	t.Run("matching code resolves its account", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		issuer := newIssuer(t, repo)

		acct := pendingAccount("123456", now.Add(5*time.Minute))
		repo.On("GetByID", ctx, acct.ID).Return(acct, nil)

		got, err := issuer.Consume(ctx, acct.ID, "123456")
		require.NoError(t, err)
		assert.Equal(t, acct.ID, got.ID)
	})

	t.Run("malformed codes rejected without a lookup", func(t *testing.T) {
		for _, code := range []string{"", "12345", "1234567", "12345a", "12 456"} {
			repo := mocks.NewMockRepository(t)
			issuer := newIssuer(t, repo)

			got, err := issuer.Consume(ctx, ulid.Make(), code)
			require.Error(t, err, "code %q", code)
			assert.Nil(t, got)
			errutil.AssertErrorCode(t, err, "VALIDATION_FAILED")
		}
	})

	t.Run("unknown account rejected", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		issuer := newIssuer(t, repo)

		id := ulid.Make()
		repo.On("GetByID", ctx, id).Return(nil, account.ErrNotFound)

		got, err := issuer.Consume(ctx, id, "123456")
		require.Error(t, err)
		assert.Nil(t, got)
		errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("no pending code rejected", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		issuer := newIssuer(t, repo)

		acct := &account.Account{ID: ulid.Make()}
		repo.On("GetByID", ctx, acct.ID).Return(acct, nil)

		got, err := issuer.Consume(ctx, acct.ID, "123456")
		require.Error(t, err)
		assert.Nil(t, got)
		errutil.AssertErrorCode(t, err, "OTP_INVALID")
	})

	t.Run("wrong code rejected", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		issuer := newIssuer(t, repo)

		acct := pendingAccount("123456", now.Add(5*time.Minute))
		repo.On("GetByID", ctx, acct.ID).Return(acct, nil)

		got, err := issuer.Consume(ctx, acct.ID, "654321")
		require.Error(t, err)
		assert.Nil(t, got)
		errutil.AssertErrorCode(t, err, "OTP_INVALID")
	})

	t.Run("code at its expiry instant rejected", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		issuer := newIssuer(t, repo)

		acct := pendingAccount("123456", now)
		repo.On("GetByID", ctx, acct.ID).Return(acct, nil)

		got, err := issuer.Consume(ctx, acct.ID, "123456")
		require.Error(t, err)
		assert.Nil(t, got)
		errutil.AssertErrorCode(t, err, "OTP_EXPIRED")
	})
}
