// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package api

import (
	"time"

	"github.com/rollcall/rollcall/internal/account"
)

type signupRequest struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Image     *string `json:"image,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createAccountRequest struct {
	signupRequest
	Role     string `json:"role,omitempty"`
	Verified bool   `json:"verified,omitempty"`
}

type updateAccountRequest struct {
	FirstName          *string    `json:"firstName,omitempty"`
	LastName           *string    `json:"lastName,omitempty"`
	MiddleName         *string    `json:"middleName,omitempty"`
	Image              *string    `json:"image,omitempty"`
	Phone              *string    `json:"phone,omitempty"`
	Gender             *string    `json:"gender,omitempty"`
	DOB                *time.Time `json:"dob,omitempty"`
	Address            *string    `json:"address,omitempty"`
	City               *string    `json:"city,omitempty"`
	State              *string    `json:"state,omitempty"`
	ParentName         *string    `json:"parentName,omitempty"`
	ParentPhone        *string    `json:"parentPhone,omitempty"`
	ParentAddress      *string    `json:"parentAddress,omitempty"`
	ParentRelationship *string    `json:"parentRelationship,omitempty"`
	Role               *string    `json:"role,omitempty"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type passwordUpdateRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Code string `json:"code"`
}

type authResponse struct {
	Token   string          `json:"token"`
	Account accountResponse `json:"account"`
}

type accountListResponse struct {
	Accounts []accountResponse `json:"accounts"`
	Total    int64             `json:"total"`
}

type accountResponse struct {
	ID                 string     `json:"id"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	Email              string     `json:"email"`
	Slug               *string    `json:"slug,omitempty"`
	MiddleName         *string    `json:"middleName,omitempty"`
	Image              *string    `json:"image,omitempty"`
	Phone              *string    `json:"phone,omitempty"`
	Gender             *string    `json:"gender,omitempty"`
	DOB                *time.Time `json:"dob,omitempty"`
	Address            *string    `json:"address,omitempty"`
	City               *string    `json:"city,omitempty"`
	State              *string    `json:"state,omitempty"`
	ParentName         *string    `json:"parentName,omitempty"`
	ParentPhone        *string    `json:"parentPhone,omitempty"`
	ParentAddress      *string    `json:"parentAddress,omitempty"`
	ParentRelationship *string    `json:"parentRelationship,omitempty"`
	Role               string     `json:"role"`
	IsAdmin            bool       `json:"isAdmin"`
	IsBlocked          bool       `json:"isBlocked"`
	IsVerified         bool       `json:"isVerified"`
	LastLoginAt        *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// toAccountResponse maps the domain account to its API shape. The password
// hash and pending reset/OTP state never leave the service.
func toAccountResponse(acct *account.Account) accountResponse {
	return accountResponse{
		ID:                 acct.ID.String(),
		FirstName:          acct.FirstName,
		LastName:           acct.LastName,
		Email:              acct.Email,
		Slug:               acct.Slug,
		MiddleName:         acct.MiddleName,
		Image:              acct.Image,
		Phone:              acct.Phone,
		Gender:             acct.Gender,
		DOB:                acct.DOB,
		Address:            acct.Address,
		City:               acct.City,
		State:              acct.State,
		ParentName:         acct.ParentName,
		ParentPhone:        acct.ParentPhone,
		ParentAddress:      acct.ParentAddress,
		ParentRelationship: acct.ParentRelationship,
		Role:               string(acct.Role),
		IsAdmin:            acct.IsAdmin,
		IsBlocked:          acct.IsBlocked,
		IsVerified:         acct.IsVerified,
		LastLoginAt:        acct.LastLoginAt,
		CreatedAt:          acct.CreatedAt,
		UpdatedAt:          acct.UpdatedAt,
	}
}

func toAccountResponses(accts []*account.Account) []accountResponse {
	out := make([]accountResponse, len(accts))
	for i, acct := range accts {
		out[i] = toAccountResponse(acct)
	}
	return out
}
