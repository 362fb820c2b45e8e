// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/rollcall/rollcall/internal/account"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32        // 32 bytes = 64 hex chars
	ResetTokenExpiry = time.Hour // validity window from issuance
)

// GenerateResetToken creates a secure random token and its digest.
// Returns (plaintext_token, sha256_digest, error). The plaintext goes into
// the reset link sent to the user; only the digest is stored.
func GenerateResetToken() (token, digest string, err error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	token = hex.EncodeToString(buf)
	return token, DigestResetToken(token), nil
}

// DigestResetToken computes the SHA-256 digest of a reset token. The token
// itself is high-entropy and single-use, so a fast hash is sufficient; the
// slow password hasher is not used here.
func DigestResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetTokenIssuer issues and consumes password-reset tokens. The account
// store keeps only the digest and the expiry; issuing overwrites any prior
// pending reset for the account.
type ResetTokenIssuer struct {
	accounts account.Repository
	now      func() time.Time
}

// NewResetTokenIssuer creates a ResetTokenIssuer.
func NewResetTokenIssuer(accounts account.Repository) (*ResetTokenIssuer, error) {
	return NewResetTokenIssuerWithClock(accounts, time.Now)
}

// NewResetTokenIssuerWithClock creates a ResetTokenIssuer with an injected
// clock for deterministic expiry tests.
func NewResetTokenIssuerWithClock(accounts account.Repository, now func() time.Time) (*ResetTokenIssuer, error) {
	if accounts == nil {
		return nil, oops.Code("RESET_ISSUER_INVALID").Errorf("account repository is required")
	}
	if now == nil {
		now = time.Now
	}
	return &ResetTokenIssuer{accounts: accounts, now: now}, nil
}

// Issue generates a reset token for the account, stores its digest with a
// one-hour expiry, and returns the plaintext token.
func (i *ResetTokenIssuer) Issue(ctx context.Context, id ulid.ULID) (string, error) {
	token, digest, err := GenerateResetToken()
	if err != nil {
		return "", err
	}

	expiresAt := i.now().Add(ResetTokenExpiry)
	if err := i.accounts.SetResetState(ctx, id, digest, expiresAt); err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	return token, nil
}

// Consume resolves a plaintext reset token to its account. The token must
// match a stored digest and be strictly before its expiry instant.
//
// Consume does not clear the reset state: the password-change step clears it
// (via Repository.UpdatePassword) only after the new password is accepted,
// so a rejected change leaves the token consumable.
func (i *ResetTokenIssuer) Consume(ctx context.Context, token string) (*account.Account, error) {
	if token == "" {
		return nil, oops.Code("RESET_TOKEN_INVALID").Errorf("reset token cannot be empty")
	}

	acct, err := i.accounts.GetByResetDigest(ctx, DigestResetToken(token))
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, oops.Code("RESET_TOKEN_INVALID").Errorf("reset token not found")
		}
		return nil, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "GetByResetDigest").
			Wrap(err)
	}

	if !acct.HasPendingReset(i.now()) {
		return nil, oops.Code("RESET_TOKEN_EXPIRED").Errorf("reset token has expired")
	}
	return acct, nil
}
