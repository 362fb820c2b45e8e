// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

// Package postgres implements account.Repository using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/rollcall/rollcall/internal/account"
)

// DB is the subset of pgxpool.Pool used by the repository. pgxmock
// implements it, which keeps the unit tests off a live database.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, first_name, last_name, middle_name, image, email, phone,
	gender, dob, address, city, state,
	parent_name, parent_phone, parent_address, parent_relationship,
	slug, password_hash, role, is_admin, is_blocked, is_verified,
	reset_token_digest, reset_expires_at, otp_code, otp_expires_at,
	last_login_at, created_at, updated_at`

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// mapConstraint translates a unique-constraint violation into the matching
// sentinel. Returns nil when err is not a unique violation.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return account.ErrDuplicateEmail
	case strings.Contains(pgErr.ConstraintName, "slug"):
		return account.ErrDuplicateSlug
	}
	return nil
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (
			id, first_name, last_name, middle_name, image, email, phone,
			gender, dob, address, city, state,
			parent_name, parent_phone, parent_address, parent_relationship,
			slug, password_hash, role, is_admin, is_blocked, is_verified,
			reset_token_digest, reset_expires_at, otp_code, otp_expires_at,
			last_login_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
			$27, $28, $29
		)
	`,
		acct.ID.String(),
		acct.FirstName,
		acct.LastName,
		acct.MiddleName,
		acct.Image,
		acct.Email,
		acct.Phone,
		acct.Gender,
		acct.DOB,
		acct.Address,
		acct.City,
		acct.State,
		acct.ParentName,
		acct.ParentPhone,
		acct.ParentAddress,
		acct.ParentRelationship,
		acct.Slug,
		acct.PasswordHash,
		string(acct.Role),
		acct.IsAdmin,
		acct.IsBlocked,
		acct.IsVerified,
		acct.ResetTokenDigest,
		acct.ResetExpiresAt,
		acct.OtpCode,
		acct.OtpExpiresAt,
		acct.LastLoginAt,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		if sentinel := mapConstraint(err); sentinel != nil {
			return sentinel
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("email", acct.Email).
			Wrap(err)
	}
	return nil
}

func (r *AccountRepository) getBy(ctx context.Context, where string, arg any) (*account.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+where, arg)
	return scanAccount(row)
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	acct, err := r.getBy(ctx, `id = $1`, id.String())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return acct, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	acct, err := r.getBy(ctx, `LOWER(email) = LOWER($1)`, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return acct, nil
}

// GetBySlug retrieves an account by slug.
func (r *AccountRepository) GetBySlug(ctx context.Context, slug string) (*account.Account, error) {
	acct, err := r.getBy(ctx, `slug = $1`, slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("slug", slug).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by slug").
			With("slug", slug).
			Wrap(err)
	}
	return acct, nil
}

// GetByResetDigest retrieves the account holding a pending reset-token digest.
func (r *AccountRepository) GetByResetDigest(ctx context.Context, digest string) (*account.Account, error) {
	acct, err := r.getBy(ctx, `reset_token_digest = $1`, digest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by reset digest").
			Wrap(err)
	}
	return acct, nil
}

// List retrieves all accounts ordered by creation time.
func (r *AccountRepository) List(ctx context.Context) ([]*account.Account, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "list accounts").
			Wrap(err)
	}
	defer rows.Close()

	var accts []*account.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, oops.Code("ACCOUNT_LIST_FAILED").
				With("operation", "scan account row").
				Wrap(err)
		}
		accts = append(accts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "iterate accounts").
			Wrap(err)
	}
	return accts, nil
}

// Count returns the total number of accounts.
func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	if err != nil {
		return 0, oops.Code("ACCOUNT_COUNT_FAILED").Wrap(err)
	}
	return n, nil
}

// SlugExists reports whether any account other than excludeID holds slug.
func (r *AccountRepository) SlugExists(ctx context.Context, slug string, excludeID ulid.ULID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE slug = $1 AND id <> $2)`,
		slug, excludeID.String()).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_SLUG_CHECK_FAILED").
			With("slug", slug).
			Wrap(err)
	}
	return exists, nil
}

// Update updates the mutable profile fields of an existing account.
func (r *AccountRepository) Update(ctx context.Context, acct *account.Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			first_name = $2, last_name = $3, middle_name = $4, image = $5,
			phone = $6, gender = $7, dob = $8, address = $9, city = $10,
			state = $11, parent_name = $12, parent_phone = $13,
			parent_address = $14, parent_relationship = $15, role = $16,
			updated_at = NOW()
		WHERE id = $1
	`,
		acct.ID.String(),
		acct.FirstName,
		acct.LastName,
		acct.MiddleName,
		acct.Image,
		acct.Phone,
		acct.Gender,
		acct.DOB,
		acct.Address,
		acct.City,
		acct.State,
		acct.ParentName,
		acct.ParentPhone,
		acct.ParentAddress,
		acct.ParentRelationship,
		string(acct.Role),
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("id", acct.ID.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", acct.ID.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// UpdateSlug sets the slug for an account.
func (r *AccountRepository) UpdateSlug(ctx context.Context, id ulid.ULID, slug string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET slug = $2, updated_at = NOW() WHERE id = $1`,
		id.String(), slug)
	if err != nil {
		if sentinel := mapConstraint(err); sentinel != nil {
			return sentinel
		}
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update slug").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// UpdatePassword sets a new password hash and clears the reset state in the
// same statement.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			password_hash = $2,
			reset_token_digest = NULL, reset_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1
	`, id.String(), passwordHash)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// SetResetState stores a reset-token digest and its expiry.
func (r *AccountRepository) SetResetState(ctx context.Context, id ulid.ULID, digest string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			reset_token_digest = $2, reset_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id.String(), digest, expiresAt)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "set reset state").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// SetOtpState stores a verification OTP and its expiry.
func (r *AccountRepository) SetOtpState(ctx context.Context, id ulid.ULID, code string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			otp_code = $2, otp_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id.String(), code, expiresAt)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "set otp state").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// MarkVerified flags the account verified and clears the OTP state.
func (r *AccountRepository) MarkVerified(ctx context.Context, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			is_verified = TRUE,
			otp_code = NULL, otp_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "mark verified").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// SetBlocked sets the blocked flag.
func (r *AccountRepository) SetBlocked(ctx context.Context, id ulid.ULID, blocked bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET is_blocked = $2, updated_at = NOW() WHERE id = $1`,
		id.String(), blocked)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "set blocked").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// UpdateLastLogin stamps the last successful sign-in time.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET last_login_at = $2 WHERE id = $1`,
		id.String(), at)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update last login").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// Delete removes an account permanently.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single account row.
func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		acct  account.Account
		idStr string
		role  string
	)
	err := row.Scan(
		&idStr,
		&acct.FirstName,
		&acct.LastName,
		&acct.MiddleName,
		&acct.Image,
		&acct.Email,
		&acct.Phone,
		&acct.Gender,
		&acct.DOB,
		&acct.Address,
		&acct.City,
		&acct.State,
		&acct.ParentName,
		&acct.ParentPhone,
		&acct.ParentAddress,
		&acct.ParentRelationship,
		&acct.Slug,
		&acct.PasswordHash,
		&role,
		&acct.IsAdmin,
		&acct.IsBlocked,
		&acct.IsVerified,
		&acct.ResetTokenDigest,
		&acct.ResetExpiresAt,
		&acct.OtpCode,
		&acct.OtpExpiresAt,
		&acct.LastLoginAt,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	acct.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	acct.Role = account.Role(role)
	return &acct, nil
}
