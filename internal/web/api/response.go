package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cattools/cattools/internal/budget"
	"github.com/cattools/cattools/internal/categories"
	"github.com/cattools/cattools/internal/scribunto"
	"github.com/cattools/cattools/internal/store"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// renderJSON writes v with the given status
func renderJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// renderError renders err with a status derived from its kind
func renderError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	renderJSON(w, status, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    code,
	})
}

// classify maps domain errors onto HTTP statuses and error codes
func classify(err error) (int, string) {
	switch {
	case categories.IsInvalidArgument(err):
		return http.StatusBadRequest, "invalid_argument"
	case budget.IsLimitExceeded(err):
		return http.StatusTooManyRequests, "expensive_limit_exceeded"
	case store.IsUnavailable(err):
		return http.StatusServiceUnavailable, "replica_unavailable"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case scribunto.IsScriptError(err):
		return http.StatusUnprocessableEntity, "script_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
