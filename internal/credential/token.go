// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	"github.com/rollcall/rollcall/internal/account"
)

// Session token lifetimes. Elevated-privilege tokens expire sooner.
const (
	AdminTokenTTL = 2 * time.Hour
	UserTokenTTL  = 24 * time.Hour
)

// Claims are the identity fields embedded in a session token.
//
// The codec does not consult storage: a verified token proves the claims
// were signed by us and are unexpired. Callers re-resolve the live account
// by ID to reject deleted or blocked accounts.
type Claims struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Image     string `json:"image,omitempty"`
	Role      string `json:"role"`
	IsAdmin   bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// AccountID returns the subject claim (the account ULID as a string).
func (c *Claims) AccountID() string {
	return c.Subject
}

// TokenCodec signs and verifies session tokens (HMAC-SHA256).
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec creates a TokenCodec signing with the given server secret.
func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	return NewTokenCodecWithClock(secret, time.Now)
}

// NewTokenCodecWithClock creates a TokenCodec with an injected clock.
// Used by tests to exercise expiry boundaries deterministically.
func NewTokenCodecWithClock(secret []byte, now func() time.Time) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("signing secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{secret: secret, now: now}, nil
}

// Issue signs a session token for the account. Accounts carrying the
// elevated-admin flag get the short TTL.
func (c *TokenCodec) Issue(acct *account.Account) (string, error) {
	if acct == nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").Errorf("account is required")
	}

	ttl := UserTokenTTL
	if acct.IsAdmin {
		ttl = AdminTokenTTL
	}

	var image string
	if acct.Image != nil {
		image = *acct.Image
	}

	now := c.now()
	claims := &Claims{
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
		Email:     acct.Email,
		Image:     image,
		Role:      string(acct.Role),
		IsAdmin:   acct.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("account_id", acct.ID.String()).
			Wrap(err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
// Fails with TOKEN_INVALID when the signature is invalid, the token is
// malformed, or its expiry has elapsed.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}
	if !parsed.Valid {
		return nil, oops.Code("TOKEN_INVALID").Errorf("token is not valid")
	}
	return claims, nil
}
