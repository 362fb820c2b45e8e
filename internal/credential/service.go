// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/rollcall/rollcall/internal/account"
	"github.com/rollcall/rollcall/internal/notify"
)

// dummyPasswordHash is verified against when an account does not exist so
// sign-in latency does not leak whether an email is registered.
// This is NOT a real credential: the result is discarded on that path.
//
//nolint:gosec // G101: intentionally fake hash for timing-attack prevention
const dummyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// ServiceDeps are the collaborators of Service. Accounts, Hasher, Tokens,
// Resets, Otps and Slugs are required; Notifier defaults to the console
// notifier and Logger to slog.Default.
type ServiceDeps struct {
	Accounts account.Repository
	Hasher   PasswordHasher
	Tokens   *TokenCodec
	Resets   *ResetTokenIssuer
	Otps     *OtpIssuer
	Slugs    *account.SlugAllocator
	Notifier notify.Notifier
	Logger   *slog.Logger

	// ResetLinkBase is prepended to issued reset tokens when rendering
	// reset emails, e.g. "https://app.example.com/lost-password".
	ResetLinkBase string
}

// Service orchestrates the credential primitives against the account store.
type Service struct {
	accounts account.Repository
	hasher   PasswordHasher
	tokens   *TokenCodec
	resets   *ResetTokenIssuer
	otps     *OtpIssuer
	slugs    *account.SlugAllocator
	notifier notify.Notifier
	log      *slog.Logger

	resetLinkBase string
}

// NewService creates a Service, validating required dependencies.
func NewService(deps ServiceDeps) (*Service, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("account repository is required")
	case deps.Hasher == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("password hasher is required")
	case deps.Tokens == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("token codec is required")
	case deps.Resets == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("reset token issuer is required")
	case deps.Otps == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("otp issuer is required")
	case deps.Slugs == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("slug allocator is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewSlogNotifier(deps.Logger)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		accounts:      deps.Accounts,
		hasher:        deps.Hasher,
		tokens:        deps.Tokens,
		resets:        deps.Resets,
		otps:          deps.Otps,
		slugs:         deps.Slugs,
		notifier:      deps.Notifier,
		log:           deps.Logger,
		resetLinkBase: deps.ResetLinkBase,
	}, nil
}

// SignupParams carry the fields accepted at registration.
type SignupParams struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Image     *string
	Phone     *string
}

func (p SignupParams) validate() error {
	if p.FirstName == "" || p.LastName == "" {
		return oops.Code("VALIDATION_FAILED").Errorf("first and last name are required")
	}
	if p.Email == "" {
		return oops.Code("VALIDATION_FAILED").Errorf("email is required")
	}
	if p.Password == "" {
		return oops.Code("VALIDATION_FAILED").Errorf("password is required")
	}
	return nil
}

// SignupResult is the outcome of a successful registration.
type SignupResult struct {
	Token   string
	Account *account.Account
}

// Signup registers a new unverified user account, allocates its slug,
// issues a welcome OTP and a session token.
//
// A notification delivery failure after the account is committed is
// returned as a NOTIFY_FAILED error alongside a non-nil result; the caller
// decides whether to resend.
func (s *Service) Signup(ctx context.Context, p SignupParams) (*SignupResult, error) {
	res, otp, err := s.register(ctx, p, account.RoleUser, false, false)
	if err != nil {
		return nil, err
	}

	msg, err := notify.WelcomeMessage(res.Account.Email, res.Account.FirstName, otp)
	if err == nil {
		err = s.notifier.Send(ctx, msg)
	}
	if err != nil {
		return res, oops.Code("NOTIFY_FAILED").
			With("account_id", res.Account.ID.String()).
			Wrap(err)
	}
	return res, nil
}

// AdminSignup registers an admin-role account. The first account created in
// an empty store receives the elevated-admin flag; admin accounts are
// created already verified.
func (s *Service) AdminSignup(ctx context.Context, p SignupParams) (*SignupResult, error) {
	total, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, oops.Code("STORAGE_FAILED").With("operation", "Count").Wrap(err)
	}

	res, _, err := s.register(ctx, p, account.RoleAdmin, total == 0, true)
	return res, err
}

// register is the shared signup path. It leaves notification to callers.
func (s *Service) register(ctx context.Context, p SignupParams, role account.Role, elevated, verified bool) (*SignupResult, string, error) {
	if err := p.validate(); err != nil {
		return nil, "", err
	}

	_, err := s.accounts.GetByEmail(ctx, p.Email)
	if err == nil {
		return nil, "", oops.Code("ACCOUNT_DUPLICATE_EMAIL").Errorf("account already exists")
	}
	if !errors.Is(err, account.ErrNotFound) {
		return nil, "", oops.Code("STORAGE_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, "", err
	}

	acct, err := account.New(p.FirstName, p.LastName, p.Email, hash, role)
	if err != nil {
		return nil, "", err
	}
	acct.Image = p.Image
	acct.Phone = p.Phone
	acct.IsAdmin = elevated
	acct.IsVerified = verified

	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			return nil, "", oops.Code("ACCOUNT_DUPLICATE_EMAIL").Errorf("account already exists")
		}
		return nil, "", oops.Code("STORAGE_FAILED").With("operation", "Create").Wrap(err)
	}

	if _, err := s.slugs.Allocate(ctx, acct); err != nil {
		return nil, "", err
	}

	var otp string
	if !verified {
		otp, err = s.otps.Issue(ctx, acct.ID)
		if err != nil {
			return nil, "", err
		}
	}

	token, err := s.tokens.Issue(acct)
	if err != nil {
		return nil, "", err
	}
	return &SignupResult{Token: token, Account: acct}, otp, nil
}

// Signin authenticates a verified, unblocked account and issues a session
// token. Password verification runs even for unknown emails to keep
// response time uniform.
func (s *Service) Signin(ctx context.Context, email, password string) (string, *account.Account, error) {
	acct, lookupErr := s.accounts.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = acct.PasswordHash
		exists = true
	case errors.Is(lookupErr, account.ErrNotFound):
	default:
		return "", nil, oops.Code("STORAGE_FAILED").With("operation", "GetByEmail").Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && exists {
		return "", nil, oops.Code("CRED_SIGNIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !exists || !valid {
		return "", nil, oops.Code("CRED_INVALID_CREDENTIALS").Errorf("invalid email or password")
	}

	if acct.IsBlocked {
		return "", nil, oops.Code("ACCOUNT_BLOCKED").Errorf("account has been blocked by an admin")
	}
	if !acct.IsVerified {
		return "", nil, oops.Code("ACCOUNT_UNVERIFIED").Errorf("account is not verified")
	}

	// Best effort; sign-in succeeds even if the stamp fails.
	now := time.Now().UTC()
	if err := s.accounts.UpdateLastLogin(ctx, acct.ID, now); err == nil {
		acct.LastLoginAt = &now
	}

	token, err := s.tokens.Issue(acct)
	if err != nil {
		return "", nil, err
	}
	return token, acct, nil
}

// AdminSignin authenticates an account carrying the elevated-admin flag.
// It skips the verification check but keeps the blocked check.
func (s *Service) AdminSignin(ctx context.Context, email, password string) (string, *account.Account, error) {
	acct, lookupErr := s.accounts.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	exists := false
	switch {
	case lookupErr == nil && acct.IsAdmin:
		targetHash = acct.PasswordHash
		exists = true
	case lookupErr == nil, errors.Is(lookupErr, account.ErrNotFound):
		// Unknown email or non-admin account: same failure either way.
	default:
		return "", nil, oops.Code("STORAGE_FAILED").With("operation", "GetByEmail").Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && exists {
		return "", nil, oops.Code("CRED_SIGNIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !exists || !valid {
		return "", nil, oops.Code("CRED_INVALID_CREDENTIALS").Errorf("invalid email or password")
	}

	if acct.IsBlocked {
		return "", nil, oops.Code("ACCOUNT_BLOCKED").Errorf("account has been blocked by an admin")
	}

	token, err := s.tokens.Issue(acct)
	if err != nil {
		return "", nil, err
	}
	return token, acct, nil
}

// RequestPasswordReset issues a reset token for the account registered
// under email and mails the reset link. The plaintext token is returned to
// the caller; only its digest is stored.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return "", oops.Code("ACCOUNT_NOT_FOUND").Wrap(err)
		}
		return "", oops.Code("STORAGE_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	token, err := s.resets.Issue(ctx, acct.ID)
	if err != nil {
		return "", err
	}

	link := fmt.Sprintf("%s?token=%s", s.resetLinkBase, token)
	msg, err := notify.ResetMessage(acct.Email, acct.FirstName, link)
	if err == nil {
		err = s.notifier.Send(ctx, msg)
	}
	if err != nil {
		return token, oops.Code("NOTIFY_FAILED").
			With("account_id", acct.ID.String()).
			Wrap(err)
	}
	return token, nil
}

// CompletePasswordReset consumes a reset token and installs the new
// password. The new password must differ from the current one; on that
// failure the reset state is left pending so the same link can be retried.
func (s *Service) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return oops.Code("VALIDATION_FAILED").Errorf("new password is required")
	}

	acct, err := s.resets.Consume(ctx, token)
	if err != nil {
		return err
	}

	same, err := s.hasher.Verify(newPassword, acct.PasswordHash)
	if err != nil {
		return oops.Code("RESET_COMPLETE_FAILED").
			With("operation", "compare with old password").
			Wrap(err)
	}
	if same {
		return oops.Code("SAME_PASSWORD").Errorf("new password must differ from the current one")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	// UpdatePassword clears the reset state in the same statement, so the
	// token becomes unusable exactly when the new password lands.
	if err := s.accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return oops.Code("STORAGE_FAILED").With("operation", "UpdatePassword").Wrap(err)
	}

	msg, err := notify.ResetDoneMessage(acct.Email, acct.FirstName)
	if err == nil {
		err = s.notifier.Send(ctx, msg)
	}
	if err != nil {
		return oops.Code("NOTIFY_FAILED").
			With("account_id", acct.ID.String()).
			Wrap(err)
	}
	return nil
}

// RequestVerification issues a fresh OTP for the account and mails it.
func (s *Service) RequestVerification(ctx context.Context, id ulid.ULID) (string, error) {
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return "", oops.Code("ACCOUNT_NOT_FOUND").Wrap(err)
		}
		return "", oops.Code("STORAGE_FAILED").With("operation", "GetByID").Wrap(err)
	}

	code, err := s.otps.Issue(ctx, acct.ID)
	if err != nil {
		return "", err
	}

	msg, err := notify.VerificationMessage(acct.Email, acct.FirstName, code)
	if err == nil {
		err = s.notifier.Send(ctx, msg)
	}
	if err != nil {
		return code, oops.Code("NOTIFY_FAILED").
			With("account_id", acct.ID.String()).
			Wrap(err)
	}
	return code, nil
}

// CompleteVerification consumes the OTP and marks the account verified,
// clearing the OTP state.
func (s *Service) CompleteVerification(ctx context.Context, id ulid.ULID, code string) error {
	acct, err := s.otps.Consume(ctx, id, code)
	if err != nil {
		return err
	}
	if err := s.accounts.MarkVerified(ctx, acct.ID); err != nil {
		return oops.Code("STORAGE_FAILED").With("operation", "MarkVerified").Wrap(err)
	}
	return nil
}

// Block marks the target account blocked on behalf of actor.
func (s *Service) Block(ctx context.Context, targetID ulid.ULID, actor *account.Account) error {
	return s.setBlocked(ctx, targetID, actor, true)
}

// Unblock clears the blocked flag on behalf of actor.
func (s *Service) Unblock(ctx context.Context, targetID ulid.ULID, actor *account.Account) error {
	return s.setBlocked(ctx, targetID, actor, false)
}

func (s *Service) setBlocked(ctx context.Context, targetID ulid.ULID, actor *account.Account, blocked bool) error {
	if actor == nil {
		return oops.Code("VALIDATION_FAILED").Errorf("acting account is required")
	}
	if targetID.Compare(actor.ID) == 0 {
		return oops.Code("SELF_ACTION_FORBIDDEN").Errorf("cannot block or unblock your own account")
	}

	target, err := s.accounts.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return oops.Code("ACCOUNT_NOT_FOUND").Wrap(err)
		}
		return oops.Code("STORAGE_FAILED").With("operation", "GetByID").Wrap(err)
	}
	if target.IsAdmin && !actor.IsAdmin {
		return oops.Code("INSUFFICIENT_PRIVILEGE").Errorf("cannot act on an elevated admin account")
	}

	if err := s.accounts.SetBlocked(ctx, targetID, blocked); err != nil {
		return oops.Code("STORAGE_FAILED").With("operation", "SetBlocked").Wrap(err)
	}
	return nil
}

// UpdateParams carry the optional profile fields of an update; nil fields
// are left untouched.
type UpdateParams struct {
	FirstName          *string
	LastName           *string
	MiddleName         *string
	Image              *string
	Phone              *string
	Gender             *string
	DOB                *time.Time
	Address            *string
	City               *string
	State              *string
	ParentName         *string
	ParentPhone        *string
	ParentAddress      *string
	ParentRelationship *string
	Role               *account.Role
}

// UpdateProfile applies a partial profile update to the target account on
// behalf of actor. Accounts may update themselves; elevated admins may update
// anyone. Role changes require an elevated admin. A name change re-derives
// the slug.
func (s *Service) UpdateProfile(ctx context.Context, targetID ulid.ULID, actor *account.Account, p UpdateParams) (*account.Account, error) {
	if actor == nil {
		return nil, oops.Code("VALIDATION_FAILED").Errorf("acting account is required")
	}
	if targetID.Compare(actor.ID) != 0 && !actor.IsAdmin {
		return nil, oops.Code("INSUFFICIENT_PRIVILEGE").Errorf("cannot update another account")
	}

	target, err := s.accounts.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(err)
		}
		return nil, oops.Code("STORAGE_FAILED").With("operation", "GetByID").Wrap(err)
	}

	renamed := false
	if p.FirstName != nil && *p.FirstName != target.FirstName {
		if *p.FirstName == "" {
			return nil, oops.Code("VALIDATION_FAILED").Errorf("first name cannot be empty")
		}
		target.FirstName = *p.FirstName
		renamed = true
	}
	if p.LastName != nil && *p.LastName != target.LastName {
		if *p.LastName == "" {
			return nil, oops.Code("VALIDATION_FAILED").Errorf("last name cannot be empty")
		}
		target.LastName = *p.LastName
		renamed = true
	}
	if p.Role != nil && *p.Role != target.Role {
		if !actor.IsAdmin {
			return nil, oops.Code("INSUFFICIENT_PRIVILEGE").Errorf("only an elevated admin can change roles")
		}
		if !p.Role.Valid() {
			return nil, oops.Code("VALIDATION_FAILED").With("role", string(*p.Role)).Errorf("unknown role")
		}
		target.Role = *p.Role
	}

	if p.MiddleName != nil {
		target.MiddleName = p.MiddleName
	}
	if p.Image != nil {
		target.Image = p.Image
	}
	if p.Phone != nil {
		target.Phone = p.Phone
	}
	if p.Gender != nil {
		target.Gender = p.Gender
	}
	if p.DOB != nil {
		target.DOB = p.DOB
	}
	if p.Address != nil {
		target.Address = p.Address
	}
	if p.City != nil {
		target.City = p.City
	}
	if p.State != nil {
		target.State = p.State
	}
	if p.ParentName != nil {
		target.ParentName = p.ParentName
	}
	if p.ParentPhone != nil {
		target.ParentPhone = p.ParentPhone
	}
	if p.ParentAddress != nil {
		target.ParentAddress = p.ParentAddress
	}
	if p.ParentRelationship != nil {
		target.ParentRelationship = p.ParentRelationship
	}

	if err := s.accounts.Update(ctx, target); err != nil {
		return nil, oops.Code("STORAGE_FAILED").With("operation", "Update").Wrap(err)
	}

	if renamed {
		if _, err := s.slugs.Allocate(ctx, target); err != nil {
			return nil, err
		}
	}
	return target, nil
}

// Delete removes the target account on behalf of actor. Only elevated admins
// may delete accounts, and never their own.
func (s *Service) Delete(ctx context.Context, targetID ulid.ULID, actor *account.Account) error {
	if actor == nil {
		return oops.Code("VALIDATION_FAILED").Errorf("acting account is required")
	}
	if !actor.IsAdmin {
		return oops.Code("INSUFFICIENT_PRIVILEGE").Errorf("only an elevated admin can delete accounts")
	}
	if targetID.Compare(actor.ID) == 0 {
		return oops.Code("SELF_ACTION_FORBIDDEN").Errorf("cannot delete your own account")
	}

	if err := s.accounts.Delete(ctx, targetID); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return oops.Code("ACCOUNT_NOT_FOUND").Wrap(err)
		}
		return oops.Code("STORAGE_FAILED").With("operation", "Delete").Wrap(err)
	}
	return nil
}

// CreateParams carry the fields for a direct (admin-driven) create.
type CreateParams struct {
	SignupParams
	Role     account.Role
	Verified bool
}

// Create adds an account directly, bypassing the self-service signup flow.
// The password is hashed and a slug is allocated like any other account.
func (s *Service) Create(ctx context.Context, p CreateParams) (*account.Account, error) {
	role := p.Role
	if role == "" {
		role = account.RoleUser
	}
	if !role.Valid() {
		return nil, oops.Code("VALIDATION_FAILED").With("role", string(role)).Errorf("unknown role")
	}

	res, _, err := s.register(ctx, p.SignupParams, role, false, p.Verified)
	if err != nil {
		return nil, err
	}
	return res.Account, nil
}
