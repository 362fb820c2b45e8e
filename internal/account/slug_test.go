// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package account_test

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rollcall/rollcall/internal/account"
	"github.com/rollcall/rollcall/internal/account/mocks"
	"github.com/rollcall/rollcall/pkg/errutil"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"simple name", []string{"Ada", "Lovelace"}, "ada-lovelace"},
		{"single part", []string{"Ada"}, "ada"},
		{"mixed case", []string{"ADA", "LoveLACE"}, "ada-lovelace"},
		{"punctuation collapses", []string{"O'Brien", "St. James"}, "o-brien-st-james"},
		{"digits preserved", []string{"Agent", "007"}, "agent-007"},
		{"interior whitespace", []string{"Mary Jane", "Watson"}, "mary-jane-watson"},
		{"leading and trailing junk", []string{"  Ada!  ", "--Lovelace--"}, "ada-lovelace"},
		{"empty parts skipped", []string{"", "Lovelace"}, "lovelace"},
		{"all junk yields empty", []string{"!!!", "---"}, ""},
		{"no parts", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, account.Slugify(tt.parts...))
		})
	}
}

func TestNewSlugAllocator_NilRepository(t *testing.T) {
	alloc, err := account.NewSlugAllocator(nil)
	require.Error(t, err)
	assert.Nil(t, alloc)
	errutil.AssertErrorCode(t, err, "SLUG_ALLOCATOR_INVALID")
}

func TestSlugAllocator_Allocate(t *testing.T) {
	ctx := context.Background()

	newAccount := func(first, last string) *account.Account {
		return &account.Account{ID: ulid.Make(), FirstName: first, LastName: last}
	}

	t.Run("base slug free on first probe", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		alloc, err := account.NewSlugAllocator(repo)
		require.NoError(t, err)

		acct := newAccount("Ada", "Lovelace")
		repo.On("SlugExists", ctx, "ada-lovelace", acct.ID).Return(false, nil)
		repo.On("UpdateSlug", ctx, acct.ID, "ada-lovelace").Return(nil)

		slug, err := alloc.Allocate(ctx, acct)
		require.NoError(t, err)
		assert.Equal(t, "ada-lovelace", slug)
		require.NotNil(t, acct.Slug)
		assert.Equal(t, "ada-lovelace", *acct.Slug)
	})

	t.Run("probes numeric suffixes on collisions", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		alloc, err := account.NewSlugAllocator(repo)
		require.NoError(t, err)

		acct := newAccount("Ada", "Lovelace")
		repo.On("SlugExists", ctx, "ada-lovelace", acct.ID).Return(true, nil)
		repo.On("SlugExists", ctx, "ada-lovelace-1", acct.ID).Return(true, nil)
		repo.On("SlugExists", ctx, "ada-lovelace-2", acct.ID).Return(false, nil)
		repo.On("UpdateSlug", ctx, acct.ID, "ada-lovelace-2").Return(nil)

		slug, err := alloc.Allocate(ctx, acct)
		require.NoError(t, err)
		assert.Equal(t, "ada-lovelace-2", slug)
	})

	t.Run("retries after losing unique-index race", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		repo := mocks.NewMockRepository(t)
		alloc, err := account.NewSlugAllocator(repo)
		require.NoError(t, err)

		acct := newAccount("Ada", "Lovelace")
		// First attempt: probe says free, but a concurrent allocation wins
		// the insert. Second attempt probes past the now-taken base.
		repo.On("SlugExists", ctx, "ada-lovelace", acct.ID).Return(false, nil).Once()
		repo.On("UpdateSlug", ctx, acct.ID, "ada-lovelace").Return(account.ErrDuplicateSlug).Once()
		repo.On("SlugExists", ctx, "ada-lovelace", acct.ID).Return(true, nil).Once()
		repo.On("SlugExists", ctx, "ada-lovelace-1", acct.ID).Return(false, nil).Once()
		repo.On("UpdateSlug", ctx, acct.ID, "ada-lovelace-1").Return(nil).Once()

		slug, err := alloc.Allocate(ctx, acct)
		require.NoError(t, err)
		assert.Equal(t, "ada-lovelace-1", slug)
	})

	t.Run("non-retryable store error fails allocation", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		alloc, err := account.NewSlugAllocator(repo)
		require.NoError(t, err)

		acct := newAccount("Ada", "Lovelace")
		storeErr := errors.New("connection refused")
		repo.On("SlugExists", ctx, "ada-lovelace", acct.ID).Return(false, storeErr)

		slug, err := alloc.Allocate(ctx, acct)
		require.Error(t, err)
		assert.Empty(t, slug)
		assert.Nil(t, acct.Slug)
		errutil.AssertErrorCode(t, err, "SLUG_ALLOCATE_FAILED")
	})

	t.Run("nil account rejected", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		alloc, err := account.NewSlugAllocator(repo)
		require.NoError(t, err)

		slug, err := alloc.Allocate(ctx, nil)
		require.Error(t, err)
		assert.Empty(t, slug)
		errutil.AssertErrorCode(t, err, "VALIDATION_FAILED")
	})

	t.Run("name yielding empty slug rejected", func(t *testing.T) {
		repo := mocks.NewMockRepository(t)
		alloc, err := account.NewSlugAllocator(repo)
		require.NoError(t, err)

		acct := newAccount("!!!", "---")
		slug, err := alloc.Allocate(ctx, acct)
		require.Error(t, err)
		assert.Empty(t, slug)
		errutil.AssertErrorCode(t, err, "VALIDATION_FAILED")
	})
}
