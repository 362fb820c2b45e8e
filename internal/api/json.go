// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/rollcall/rollcall/pkg/errutil"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// writeError maps a service error to an HTTP status using its oops code and
// returns the status written. Internal codes (storage and friends) collapse
// to a generic 500 so storage details never leak to clients.
func writeError(w http.ResponseWriter, err error) int {
	code := errutil.Code(err)
	status, known := statusByCode[code]
	if !known {
		writeErrorCode(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return http.StatusInternalServerError
	}
	writeErrorCode(w, status, code, err.Error())
	return status
}

var statusByCode = map[string]int{
	"VALIDATION_FAILED":        http.StatusBadRequest,
	"RESET_TOKEN_INVALID":      http.StatusBadRequest,
	"RESET_TOKEN_EXPIRED":      http.StatusBadRequest,
	"OTP_INVALID":              http.StatusBadRequest,
	"OTP_EXPIRED":              http.StatusBadRequest,
	"SAME_PASSWORD":            http.StatusBadRequest,
	"CRED_INVALID_CREDENTIALS": http.StatusUnauthorized,
	"TOKEN_INVALID":            http.StatusUnauthorized,
	"ACCOUNT_BLOCKED":          http.StatusForbidden,
	"ACCOUNT_UNVERIFIED":       http.StatusForbidden,
	"SELF_ACTION_FORBIDDEN":    http.StatusForbidden,
	"INSUFFICIENT_PRIVILEGE":   http.StatusForbidden,
	"ACCOUNT_NOT_FOUND":        http.StatusNotFound,
	"ACCOUNT_DUPLICATE_EMAIL":  http.StatusConflict,
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return oops.Code("VALIDATION_FAILED").Errorf("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return oops.Code("VALIDATION_FAILED").Wrap(err)
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return oops.Code("VALIDATION_FAILED").Errorf("extra data after JSON object")
	}
	return nil
}
