// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package credential_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/internal/account"
	"github.com/rollcall/rollcall/internal/credential"
	"github.com/rollcall/rollcall/pkg/errutil"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testAccount(isAdmin bool) *account.Account {
	image := "https://cdn.example.com/ada.png"
	return &account.Account{
		ID:        ulid.Make(),
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Image:     &image,
		Role:      account.RoleStudent,
		IsAdmin:   isAdmin,
	}
}

func TestNewTokenCodec(t *testing.T) {
	t.Run("empty secret rejected", func(t *testing.T) {
		codec, err := credential.NewTokenCodec(nil)
		require.Error(t, err)
		assert.Nil(t, codec)
		errutil.AssertErrorCode(t, err, "TOKEN_CONFIG_INVALID")
	})

	t.Run("valid secret accepted", func(t *testing.T) {
		codec, err := credential.NewTokenCodec(testSecret)
		require.NoError(t, err)
		assert.NotNil(t, codec)
	})
}

func TestTokenCodec_IssueVerify(t *testing.T) {
	codec, err := credential.NewTokenCodec(testSecret)
	require.NoError(t, err)

	t.Run("round trip carries identity claims", func(t *testing.T) {
		acct := testAccount(false)
		token, err := codec.Issue(acct)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := codec.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, acct.ID.String(), claims.AccountID())
		assert.Equal(t, "Ada", claims.FirstName)
		assert.Equal(t, "Lovelace", claims.LastName)
		assert.Equal(t, "ada@example.com", claims.Email)
		assert.Equal(t, "https://cdn.example.com/ada.png", claims.Image)
		assert.Equal(t, string(account.RoleStudent), claims.Role)
		assert.False(t, claims.IsAdmin)
	})

	t.Run("nil account rejected", func(t *testing.T) {
		token, err := codec.Issue(nil)
		require.Error(t, err)
		assert.Empty(t, token)
		errutil.AssertErrorCode(t, err, "TOKEN_ISSUE_FAILED")
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		claims, err := codec.Verify("not.a.token")
		require.Error(t, err)
		assert.Nil(t, claims)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("token signed with a different secret rejected", func(t *testing.T) {
		other, err := credential.NewTokenCodec([]byte("another-secret-entirely-32-bytes"))
		require.NoError(t, err)

		token, err := other.Issue(testAccount(false))
		require.NoError(t, err)

		claims, err := codec.Verify(token)
		require.Error(t, err)
		assert.Nil(t, claims)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		// alg=none tokens must never verify regardless of payload.
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": ulid.Make().String(),
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		claims, err := codec.Verify(token)
		require.Error(t, err)
		assert.Nil(t, claims)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})
}

func TestTokenCodec_Expiry(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newCodecAt := func(t *testing.T, at time.Time) *credential.TokenCodec {
		t.Helper()
		codec, err := credential.NewTokenCodecWithClock(testSecret, func() time.Time { return at })
		require.NoError(t, err)
		return codec
	}

	tests := []struct {
		name     string
		isAdmin  bool
		verifyAt time.Time
		wantOK   bool
	}{
		{"user token valid just before 24h", false, issuedAt.Add(credential.UserTokenTTL - time.Second), true},
		{"user token expired just after 24h", false, issuedAt.Add(credential.UserTokenTTL + time.Second), false},
		{"admin token valid just before 2h", true, issuedAt.Add(credential.AdminTokenTTL - time.Second), true},
		{"admin token expired just after 2h", true, issuedAt.Add(credential.AdminTokenTTL + time.Second), false},
		{"admin token does not get the user TTL", true, issuedAt.Add(12 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := newCodecAt(t, issuedAt)
			token, err := issuer.Issue(testAccount(tt.isAdmin))
			require.NoError(t, err)

			verifier := newCodecAt(t, tt.verifyAt)
			claims, err := verifier.Verify(token)
			if tt.wantOK {
				require.NoError(t, err)
				assert.NotNil(t, claims)
			} else {
				require.Error(t, err)
				assert.Nil(t, claims)
				errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
			}
		})
	}
}
