// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package account

import "errors"

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("account not found")

// ErrDuplicateEmail is returned when an insert or update would violate the
// email uniqueness constraint.
var ErrDuplicateEmail = errors.New("email already in use")

// ErrDuplicateSlug is returned when an insert or update would violate the
// slug uniqueness constraint.
var ErrDuplicateSlug = errors.New("slug already in use")
