// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

// Package account defines the account domain model and its persistence
// contract.
package account

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the coarse account role. The admin role is independent from the
// elevated IsAdmin flag: an account can carry role admin without elevated
// privileges.
type Role string

// Known roles.
const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Account represents a user account.
//
// Reset and OTP state travel in pairs: digest+expiry are either both set or
// both nil. Repositories persist them together and clear them together.
type Account struct {
	ID        ulid.ULID
	FirstName string
	LastName  string
	Email     string
	Slug      *string

	MiddleName *string
	Image      *string
	Phone      *string
	Gender     *string
	DOB        *time.Time
	Address    *string
	City       *string
	State      *string

	ParentName         *string
	ParentPhone        *string
	ParentAddress      *string
	ParentRelationship *string

	PasswordHash string
	Role         Role
	IsAdmin      bool
	IsBlocked    bool
	IsVerified   bool

	ResetTokenDigest *string
	ResetExpiresAt   *time.Time

	OtpCode      *string
	OtpExpiresAt *time.Time

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a validated Account with a fresh ID and timestamps.
// The password hash must already be computed; this package never sees
// plaintext passwords.
func New(firstName, lastName, email, passwordHash string, role Role) (*Account, error) {
	if firstName == "" || lastName == "" {
		return nil, oops.Code("VALIDATION_FAILED").Errorf("first and last name are required")
	}
	if email == "" {
		return nil, oops.Code("VALIDATION_FAILED").Errorf("email is required")
	}
	if passwordHash == "" {
		return nil, oops.Code("VALIDATION_FAILED").Errorf("password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("VALIDATION_FAILED").With("role", string(role)).Errorf("unknown role")
	}

	now := time.Now().UTC()
	return &Account{
		ID:           ulid.Make(),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// HasPendingReset reports whether a reset token is pending and unexpired at t.
// A token is valid only strictly before its expiry instant.
func (a *Account) HasPendingReset(t time.Time) bool {
	return a.ResetTokenDigest != nil && a.ResetExpiresAt != nil && t.Before(*a.ResetExpiresAt)
}

// HasPendingOtp reports whether an OTP is pending and unexpired at t.
func (a *Account) HasPendingOtp(t time.Time) bool {
	return a.OtpCode != nil && a.OtpExpiresAt != nil && t.Before(*a.OtpExpiresAt)
}

// Repository manages account persistence.
//
// Implementations must enforce uniqueness of email and slug and surface
// violations as ErrDuplicateEmail / ErrDuplicateSlug so callers can react
// (duplicate signup, slug allocation retry).
type Repository interface {
	// Create stores a new account.
	Create(ctx context.Context, acct *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetBySlug retrieves an account by slug.
	GetBySlug(ctx context.Context, slug string) (*Account, error)

	// GetByResetDigest retrieves the account holding the given pending
	// reset-token digest. Returns ErrNotFound if no account has it.
	GetByResetDigest(ctx context.Context, digest string) (*Account, error)

	// List retrieves all accounts ordered by creation time.
	List(ctx context.Context) ([]*Account, error)

	// Count returns the total number of accounts.
	Count(ctx context.Context) (int64, error)

	// SlugExists reports whether any account other than excludeID holds slug.
	SlugExists(ctx context.Context, slug string, excludeID ulid.ULID) (bool, error)

	// Update updates the mutable profile fields of an existing account.
	Update(ctx context.Context, acct *Account) error

	// UpdateSlug sets the slug for an account.
	UpdateSlug(ctx context.Context, id ulid.ULID, slug string) error

	// UpdatePassword sets a new password hash and clears any pending
	// reset state in the same statement.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetResetState stores a reset-token digest and its expiry,
	// overwriting any pending reset.
	SetResetState(ctx context.Context, id ulid.ULID, digest string, expiresAt time.Time) error

	// SetOtpState stores a verification OTP and its expiry, overwriting
	// any pending code.
	SetOtpState(ctx context.Context, id ulid.ULID, code string, expiresAt time.Time) error

	// MarkVerified flags the account verified and clears the OTP state.
	MarkVerified(ctx context.Context, id ulid.ULID) error

	// SetBlocked sets the blocked flag.
	SetBlocked(ctx context.Context, id ulid.ULID, blocked bool) error

	// UpdateLastLogin stamps the last successful sign-in time.
	UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// Delete removes an account permanently.
	Delete(ctx context.Context, id ulid.ULID) error
}
