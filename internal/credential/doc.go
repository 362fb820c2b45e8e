// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

// Package credential implements the credential lifecycle for accounts.
//
// # Primitives
//
//   - PasswordHasher / BcryptHasher - one-way password hashing
//   - TokenCodec - signed session tokens with role-aware expiry
//   - ResetTokenIssuer - single-use password-reset tokens (digest stored)
//   - OtpIssuer - short-lived per-account verification codes
//
// # Orchestration
//
// Service coordinates the primitives against the account store to implement
// the signup, signin, password-reset, verification and block flows. It is
// created with NewService, which validates its dependencies.
//
// Plaintext passwords and tokens only ever transit through this package;
// nothing here persists or logs them.
package credential
