package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/marcus/kb/internal/serverdb"
)

// Error codes carried in structured error bodies.
const (
	ErrCodeBadRequest          = "bad_request"
	ErrCodeNotFound            = "not_found"
	ErrCodeInternal            = "internal"
	ErrCodeUnauthorized        = "unauthorized"
	ErrCodeForbidden           = "forbidden"
	ErrCodeRateLimited         = "rate_limited"
	ErrCodeConflict            = "conflict"
	ErrCodeItemNotFound        = "item_not_found"
	ErrCodeCrossTenant         = "cross_tenant"
	ErrCodePositionOutOfRange  = "position_out_of_range"
	ErrCodeInvalidColumn       = "invalid_column"
	ErrCodeIdempotencyConflict = "idempotency_conflict"
)

// APIError represents a structured error returned by the API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError for JSON serialization.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error: APIError{Code: code, Message: message},
	}); err != nil {
		slog.Error("write error response", "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write json response", "err", err)
	}
}

// storeErrorStatus maps a store error to an HTTP status and error code.
func storeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, serverdb.ErrCrossTenant):
		return http.StatusForbidden, ErrCodeCrossTenant
	case errors.Is(err, serverdb.ErrPositionOutOfRange):
		return http.StatusUnprocessableEntity, ErrCodePositionOutOfRange
	case errors.Is(err, serverdb.ErrInvalidColumn):
		return http.StatusUnprocessableEntity, ErrCodeInvalidColumn
	case errors.Is(err, serverdb.ErrItemNotFound):
		return http.StatusNotFound, ErrCodeItemNotFound
	case errors.Is(err, serverdb.ErrProjectNotFound),
		errors.Is(err, serverdb.ErrUserNotFound),
		errors.Is(err, serverdb.ErrMembershipNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, serverdb.ErrInvalidRole):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, serverdb.ErrLastOwner):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, serverdb.ErrNotMember), errors.Is(err, serverdb.ErrInsufficientRole):
		return http.StatusForbidden, ErrCodeForbidden
	}
	return http.StatusInternalServerError, ErrCodeInternal
}

// writeStoreError reports err to the client, logging anything unexpected.
func writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := storeErrorStatus(err)
	if status >= 500 {
		logFor(r.Context()).Error(op, "err", err)
		writeError(w, status, code, op+" failed")
		return
	}
	writeError(w, status, code, err.Error())
}
