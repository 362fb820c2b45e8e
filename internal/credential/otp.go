// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package credential

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/rollcall/rollcall/internal/account"
)

// OTP configuration. Codes are six decimal digits drawn uniformly from
// [100000, 999999] and expire ten minutes after issuance.
const (
	OtpExpiry = 10 * time.Minute

	otpMin  = 100000
	otpSpan = 900000
)

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

// OtpIssuer issues and consumes account-verification codes.
//
// A code is a per-account secret: consuming requires the account ID, so a
// code colliding across two concurrently pending accounts can never verify
// the wrong one.
type OtpIssuer struct {
	accounts account.Repository
	now      func() time.Time
}

// NewOtpIssuer creates an OtpIssuer.
func NewOtpIssuer(accounts account.Repository) (*OtpIssuer, error) {
	return NewOtpIssuerWithClock(accounts, time.Now)
}

// NewOtpIssuerWithClock creates an OtpIssuer with an injected clock.
func NewOtpIssuerWithClock(accounts account.Repository, now func() time.Time) (*OtpIssuer, error) {
	if accounts == nil {
		return nil, oops.Code("OTP_ISSUER_INVALID").Errorf("account repository is required")
	}
	if now == nil {
		now = time.Now
	}
	return &OtpIssuer{accounts: accounts, now: now}, nil
}

// GenerateOtpCode draws a six-digit code uniformly from [100000, 999999].
func GenerateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	code := otpMin + int(n.Int64())
	return big.NewInt(int64(code)).String(), nil
}

// Issue generates a verification code for the account, stores it with a
// ten-minute expiry overwriting any pending code, and returns it.
func (i *OtpIssuer) Issue(ctx context.Context, id ulid.ULID) (string, error) {
	code, err := GenerateOtpCode()
	if err != nil {
		return "", err
	}

	expiresAt := i.now().Add(OtpExpiry)
	if err := i.accounts.SetOtpState(ctx, id, code, expiresAt); err != nil {
		return "", oops.Code("OTP_ISSUE_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	return code, nil
}

// Consume checks the supplied code against the account's pending OTP.
// Fails with VALIDATION_FAILED for malformed input, OTP_INVALID when the
// account has no matching pending code, and OTP_EXPIRED past the expiry
// instant. The caller marks the account verified, which clears both fields.
func (i *OtpIssuer) Consume(ctx context.Context, id ulid.ULID, code string) (*account.Account, error) {
	if !otpPattern.MatchString(code) {
		return nil, oops.Code("VALIDATION_FAILED").Errorf("verification code must be six digits")
	}

	acct, err := i.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(err)
		}
		return nil, oops.Code("OTP_CONSUME_FAILED").
			With("operation", "GetByID").
			Wrap(err)
	}

	if acct.OtpCode == nil || acct.OtpExpiresAt == nil {
		return nil, oops.Code("OTP_INVALID").Errorf("no verification code is pending")
	}
	if subtle.ConstantTimeCompare([]byte(*acct.OtpCode), []byte(code)) != 1 {
		return nil, oops.Code("OTP_INVALID").Errorf("verification code does not match")
	}
	if !i.now().Before(*acct.OtpExpiresAt) {
		return nil, oops.Code("OTP_EXPIRED").Errorf("verification code has expired")
	}
	return acct, nil
}
