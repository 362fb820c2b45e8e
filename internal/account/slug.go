// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Slug allocation retry policy. The unique index on slug is the backstop for
// concurrent allocations against the same base; the loser re-probes.
const (
	slugRetryBackoff = 25 * time.Millisecond
	slugMaxRetries   = 5
)

// Slugify derives a URL-safe slug from name parts: lowercase, runs of
// non-alphanumeric characters collapsed to a single hyphen, no leading or
// trailing hyphen.
func Slugify(parts ...string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, part := range parts {
		for _, r := range strings.ToLower(part) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				if pendingHyphen && b.Len() > 0 {
					b.WriteByte('-')
				}
				pendingHyphen = false
				b.WriteRune(r)
			} else {
				pendingHyphen = true
			}
		}
		pendingHyphen = true
	}
	return b.String()
}

// SlugAllocator assigns unique human-readable slugs to accounts.
type SlugAllocator struct {
	accounts Repository
}

// NewSlugAllocator creates a SlugAllocator.
func NewSlugAllocator(accounts Repository) (*SlugAllocator, error) {
	if accounts == nil {
		return nil, oops.Code("SLUG_ALLOCATOR_INVALID").Errorf("account repository is required")
	}
	return &SlugAllocator{accounts: accounts}, nil
}

// Allocate derives a slug from the account's name, disambiguates collisions
// with a numeric suffix, persists the winner and returns it.
//
// The account row must already exist: the collision probe excludes the
// target's own row so re-allocation after a rename does not collide with
// itself. A concurrent allocation losing the race on the unique index is
// retried with the next candidate.
func (s *SlugAllocator) Allocate(ctx context.Context, acct *Account) (string, error) {
	if acct == nil {
		return "", oops.Code("VALIDATION_FAILED").Errorf("account is required")
	}

	base := Slugify(acct.FirstName, acct.LastName)
	if base == "" {
		return "", oops.Code("VALIDATION_FAILED").
			With("account_id", acct.ID.String()).
			Errorf("name yields an empty slug")
	}

	var allocated string
	backoff := retry.WithMaxRetries(slugMaxRetries, retry.NewConstant(slugRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, err := s.nextFree(ctx, base, acct.ID)
		if err != nil {
			return err
		}
		if err := s.accounts.UpdateSlug(ctx, acct.ID, candidate); err != nil {
			if errors.Is(err, ErrDuplicateSlug) {
				// Lost the race; probe again from the base.
				return retry.RetryableError(err)
			}
			return err
		}
		allocated = candidate
		return nil
	})
	if err != nil {
		return "", oops.Code("SLUG_ALLOCATE_FAILED").
			With("account_id", acct.ID.String()).
			With("base", base).
			Wrap(err)
	}

	acct.Slug = &allocated
	return allocated, nil
}

// nextFree probes base, base-1, base-2, ... until an unused slug is found.
func (s *SlugAllocator) nextFree(ctx context.Context, base string, exclude ulid.ULID) (string, error) {
	candidate := base
	for counter := 1; ; counter++ {
		taken, err := s.accounts.SlugExists(ctx, candidate, exclude)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}
