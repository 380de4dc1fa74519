// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/task"
	"github.com/taskhub/taskhub/pkg/errutil"
)

// CodeRequestInvalid marks a body that is not valid JSON for the endpoint.
const CodeRequestInvalid = "REQUEST_INVALID"

const (
	maxBodyBytes        = 1 << 20
	msgInternalError    = "internal server error"
	msgNotFound         = "not found"
	msgMethodNotAllowed = "method not allowed"
)

// statusByCode lists every error code whose message is safe to return.
var statusByCode = map[string]int{
	auth.CodeValidation:               http.StatusBadRequest,
	auth.CodeUserExists:               http.StatusConflict,
	auth.CodeInvalidCredentials:       http.StatusUnauthorized,
	auth.CodeEmailNotVerified:         http.StatusForbidden,
	auth.CodeTokenInvalid:             http.StatusUnauthorized,
	auth.CodeResetTokenInvalid:        http.StatusBadRequest,
	auth.CodeVerificationTokenInvalid: http.StatusBadRequest,
	auth.CodeNotFoundOrVerified:       http.StatusNotFound,
	task.CodeValidation:               http.StatusBadRequest,
	task.CodeNotFound:                 http.StatusNotFound,
	CodeRequestInvalid:                http.StatusBadRequest,
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(body)
}

// statusFor returns the HTTP status for err and whether its message may be
// shown to the client.
func statusFor(err error) (int, bool) {
	status, ok := statusByCode[errutil.Code(err)]
	if !ok {
		return http.StatusInternalServerError, false
	}
	return status, true
}

// writeError maps err onto the response. Internal errors are logged with
// their full oops context and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, public := statusFor(err)
	if !public {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
		)
		writeJSON(w, status, errorBody{Message: msgInternalError})
		return
	}
	writeJSON(w, status, errorBody{Message: err.Error(), Code: errutil.Code(err)})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return oops.Code(CodeRequestInvalid).Errorf("request body is required")
		case errors.As(err, &maxErr):
			return oops.Code(CodeRequestInvalid).Errorf("request body too large")
		default:
			return oops.Code(CodeRequestInvalid).Errorf("request body must be valid JSON")
		}
	}
	return nil
}
