// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/rollcall/rollcall/internal/account"
	"github.com/rollcall/rollcall/internal/credential"
	"github.com/rollcall/rollcall/internal/observability"
	"github.com/rollcall/rollcall/pkg/errutil"
)

// Handler exposes the account service over HTTP. All routes live under /v1
// and exchange JSON bodies.
type Handler struct {
	log      *slog.Logger
	svc      *credential.Service
	accounts account.Repository
	tokens   *credential.TokenCodec
	metrics  *observability.Metrics
}

// HandlerDeps are the collaborators of Handler. Service, Accounts and Tokens
// are required; Logger defaults to a disabled logger and Metrics may be nil.
type HandlerDeps struct {
	Service  *credential.Service
	Accounts account.Repository
	Tokens   *credential.TokenCodec
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// NewHandler validates deps and returns a Handler ready to Register.
func NewHandler(deps HandlerDeps) (*Handler, error) {
	switch {
	case deps.Service == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("account service is required")
	case deps.Accounts == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("account repository is required")
	case deps.Tokens == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("token codec is required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		log:      log,
		svc:      deps.Service,
		accounts: deps.Accounts,
		tokens:   deps.Tokens,
		metrics:  deps.Metrics,
	}, nil
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/auth/signup", h.handleSignup)
	mux.HandleFunc("POST /v1/auth/signin", h.handleSignin)
	mux.HandleFunc("POST /v1/auth/admin/signup", h.handleAdminSignup)
	mux.HandleFunc("POST /v1/auth/admin/signin", h.handleAdminSignin)
	mux.HandleFunc("POST /v1/auth/password-reset", h.handlePasswordResetRequest)
	mux.HandleFunc("POST /v1/auth/password-reset/complete", h.handlePasswordResetComplete)
	mux.HandleFunc("POST /v1/auth/verify/request", h.requireAuth(h.handleVerifyRequest))
	mux.HandleFunc("POST /v1/auth/verify", h.requireAuth(h.handleVerify))

	mux.HandleFunc("GET /v1/me", h.requireAuth(h.handleMe))

	mux.HandleFunc("GET /v1/accounts", h.requireAdmin(h.handleListAccounts))
	mux.HandleFunc("POST /v1/accounts", h.requireAdmin(h.handleCreateAccount))
	mux.HandleFunc("GET /v1/accounts/{id}", h.requireAuth(h.handleGetAccount))
	mux.HandleFunc("PATCH /v1/accounts/{id}", h.requireAuth(h.handleUpdateAccount))
	mux.HandleFunc("DELETE /v1/accounts/{id}", h.requireAdmin(h.handleDeleteAccount))
	mux.HandleFunc("GET /v1/accounts/slug/{slug}", h.requireAuth(h.handleGetAccountBySlug))
	mux.HandleFunc("POST /v1/accounts/{id}/block", h.requireAdmin(h.handleBlockAccount))
	mux.HandleFunc("POST /v1/accounts/{id}/unblock", h.requireAdmin(h.handleUnblockAccount))
}

// authedFunc is a handler that runs on behalf of an authenticated account.
type authedFunc func(w http.ResponseWriter, r *http.Request, actor *account.Account)

// requireAuth verifies the bearer token and re-resolves the live account so
// blocked or deleted accounts lose access as soon as their state changes.
func (h *Handler) requireAuth(next authedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := h.authenticate(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next(w, r, actor)
	}
}

// requireAdmin is requireAuth plus an elevated-admin check.
func (h *Handler) requireAdmin(next authedFunc) http.HandlerFunc {
	return h.requireAuth(func(w http.ResponseWriter, r *http.Request, actor *account.Account) {
		if !actor.IsAdmin {
			h.writeError(w, r, oops.Code("INSUFFICIENT_PRIVILEGE").Errorf("admin access required"))
			return
		}
		next(w, r, actor)
	})
}

func (h *Handler) authenticate(r *http.Request) (*account.Account, error) {
	raw := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || token == "" {
		return nil, oops.Code("TOKEN_INVALID").Errorf("missing bearer token")
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	id, err := ulid.Parse(claims.AccountID())
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}

	actor, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, oops.Code("TOKEN_INVALID").Errorf("account no longer exists")
		}
		return nil, err
	}
	if actor.IsBlocked {
		return nil, oops.Code("ACCOUNT_BLOCKED").Errorf("account is blocked")
	}
	return actor, nil
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.Signup(r.Context(), credential.SignupParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Image:     req.Image,
		Phone:     req.Phone,
	})
	if err != nil {
		// The account exists even when the welcome mail could not be
		// delivered, so the caller still gets their session.
		if res == nil || !errutil.HasCode(err, "NOTIFY_FAILED") {
			h.writeError(w, r, err)
			return
		}
		h.log.Warn("signup notification failed", "email", req.Email, "error", err)
	}

	if h.metrics != nil {
		h.metrics.SignupsTotal.WithLabelValues(string(res.Account.Role)).Inc()
	}
	h.writeJSON(w, r, http.StatusCreated, authResponse{
		Token:   res.Token,
		Account: toAccountResponse(res.Account),
	})
}

func (h *Handler) handleAdminSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.AdminSignup(r.Context(), credential.SignupParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Image:     req.Image,
		Phone:     req.Phone,
	})
	if err != nil {
		if res == nil || !errutil.HasCode(err, "NOTIFY_FAILED") {
			h.writeError(w, r, err)
			return
		}
		h.log.Warn("signup notification failed", "email", req.Email, "error", err)
	}

	if h.metrics != nil {
		h.metrics.SignupsTotal.WithLabelValues(string(res.Account.Role)).Inc()
	}
	h.writeJSON(w, r, http.StatusCreated, authResponse{
		Token:   res.Token,
		Account: toAccountResponse(res.Account),
	})
}

func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	h.signin(w, r, h.svc.Signin)
}

func (h *Handler) handleAdminSignin(w http.ResponseWriter, r *http.Request) {
	h.signin(w, r, h.svc.AdminSignin)
}

func (h *Handler) signin(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string) (string, *account.Account, error)) {
	var req signinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	token, acct, err := fn(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.metrics != nil {
			h.metrics.SigninsTotal.WithLabelValues("failure").Inc()
		}
		h.writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SigninsTotal.WithLabelValues("success").Inc()
	}
	h.writeJSON(w, r, http.StatusOK, authResponse{
		Token:   token,
		Account: toAccountResponse(acct),
	})
}

func (h *Handler) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		// The token is already stored, so the reset can still complete if
		// the mail eventually arrives through another channel.
		if !errutil.HasCode(err, "NOTIFY_FAILED") {
			h.writeError(w, r, err)
			return
		}
		h.log.Warn("reset notification failed", "email", req.Email, "error", err)
	}

	if h.metrics != nil {
		h.metrics.PasswordResetsTotal.WithLabelValues("requested").Inc()
	}
	h.writeStatus(w, r, http.StatusNoContent)
}

func (h *Handler) handlePasswordResetComplete(w http.ResponseWriter, r *http.Request) {
	var req passwordUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.CompletePasswordReset(r.Context(), req.Token, req.Password); err != nil {
		// The password change is committed before the confirmation mail.
		if !errutil.HasCode(err, "NOTIFY_FAILED") {
			h.writeError(w, r, err)
			return
		}
		h.log.Warn("reset confirmation notification failed", "error", err)
	}

	if h.metrics != nil {
		h.metrics.PasswordResetsTotal.WithLabelValues("completed").Inc()
	}
	h.writeStatus(w, r, http.StatusNoContent)
}

func (h *Handler) handleVerifyRequest(w http.ResponseWriter, r *http.Request, actor *account.Account) {
	if _, err := h.svc.RequestVerification(r.Context(), actor.ID); err != nil {
		if !errutil.HasCode(err, "NOTIFY_FAILED") {
			h.writeError(w, r, err)
			return
		}
		h.log.Warn("verification notification failed", "account", actor.ID.String(), "error", err)
	}
	h.writeStatus(w, r, http.StatusNoContent)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request, actor *account.Account) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.CompleteVerification(r.Context(), actor.ID, req.Code); err != nil {
		if h.metrics != nil {
			h.metrics.VerificationsTotal.WithLabelValues("failure").Inc()
		}
		h.writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.VerificationsTotal.WithLabelValues("success").Inc()
	}
	h.writeStatus(w, r, http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request, actor *account.Account) {
	h.writeJSON(w, r, http.StatusOK, toAccountResponse(actor))
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request, _ *account.Account) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	total, err := h.accounts.Count(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, accountListResponse{
		Accounts: toAccountResponses(accounts),
		Total:    total,
	})
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request, _ *account.Account) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	acct, err := h.svc.Create(r.Context(), credential.CreateParams{
		SignupParams: credential.SignupParams{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Password:  req.Password,
			Image:     req.Image,
			Phone:     req.Phone,
		},
		Role:     account.Role(req.Role),
		Verified: req.Verified,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SignupsTotal.WithLabelValues(string(acct.Role)).Inc()
	}
	h.writeJSON(w, r, http.StatusCreated, toAccountResponse(acct))
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request, _ *account.Account) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	acct, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toAccountResponse(acct))
}

func (h *Handler) handleGetAccountBySlug(w http.ResponseWriter, r *http.Request, _ *account.Account) {
	slug := r.PathValue("slug")
	if slug == "" {
		h.writeError(w, r, oops.Code("VALIDATION_FAILED").Errorf("slug is required"))
		return
	}

	acct, err := h.accounts.GetBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toAccountResponse(acct))
}

func (h *Handler) handleUpdateAccount(w http.ResponseWriter, r *http.Request, actor *account.Account) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	params := credential.UpdateParams{
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		MiddleName:         req.MiddleName,
		Image:              req.Image,
		Phone:              req.Phone,
		Gender:             req.Gender,
		DOB:                req.DOB,
		Address:            req.Address,
		City:               req.City,
		State:              req.State,
		ParentName:         req.ParentName,
		ParentPhone:        req.ParentPhone,
		ParentAddress:      req.ParentAddress,
		ParentRelationship: req.ParentRelationship,
	}
	if req.Role != nil {
		role := account.Role(*req.Role)
		params.Role = &role
	}

	acct, err := h.svc.UpdateProfile(r.Context(), id, actor, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toAccountResponse(acct))
}

func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request, actor *account.Account) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id, actor); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeStatus(w, r, http.StatusNoContent)
}

func (h *Handler) handleBlockAccount(w http.ResponseWriter, r *http.Request, actor *account.Account) {
	h.setBlocked(w, r, actor, h.svc.Block)
}

func (h *Handler) handleUnblockAccount(w http.ResponseWriter, r *http.Request, actor *account.Account) {
	h.setBlocked(w, r, actor, h.svc.Unblock)
}

func (h *Handler) setBlocked(w http.ResponseWriter, r *http.Request, actor *account.Account, fn func(context.Context, ulid.ULID, *account.Account) error) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := fn(r.Context(), id, actor); err != nil {
		h.writeError(w, r, err)
		return
	}

	acct, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toAccountResponse(acct))
}

func pathID(r *http.Request) (ulid.ULID, error) {
	id, err := ulid.Parse(r.PathValue("id"))
	if err != nil {
		return ulid.ULID{}, oops.Code("VALIDATION_FAILED").With("id", r.PathValue("id")).Wrap(err)
	}
	return id, nil
}

// writeJSON responds with v and records the request metric.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	writeJSON(w, status, v)
	h.countRequest(r, status)
}

// writeStatus responds with a bare status and records the request metric.
func (h *Handler) writeStatus(w http.ResponseWriter, r *http.Request, status int) {
	w.WriteHeader(status)
	h.countRequest(r, status)
}

// writeError responds with the mapped error, logging server-side failures.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := writeError(w, err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	h.countRequest(r, status)
}

func (h *Handler) countRequest(r *http.Request, status int) {
	if h.metrics == nil {
		return
	}
	route := r.Pattern
	if route == "" {
		route = r.URL.Path
	}
	h.metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
