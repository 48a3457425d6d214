package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fkhayef/smartrewards/pkg/apperror"
)

// APIResponse is the standard response wrapper
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// APIError represents an error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta contains pagination and other metadata
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// JSON sends a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// JSONWithMeta sends a JSON response with pagination metadata
func JSONWithMeta(w http.ResponseWriter, status int, data interface{}, meta *Meta) {
	write(w, status, APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

// Error sends an error JSON response
func Error(w http.ResponseWriter, status int, code, message string) {
	write(w, status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

func write(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// errorKinds maps shared error kinds to status and machine-readable code.
// Order matters only for errors that wrap more than one kind.
var errorKinds = []struct {
	kind   error
	status int
	code   string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{apperror.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{apperror.ErrPermission, http.StatusForbidden, "FORBIDDEN"},
	{apperror.ErrNotMember, http.StatusForbidden, "NOT_MEMBER"},
	{apperror.ErrDuplicateMembership, http.StatusConflict, "DUPLICATE_MEMBERSHIP"},
	{apperror.ErrCapacity, http.StatusConflict, "CAPACITY_REACHED"},
	{apperror.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
	{apperror.ErrInsufficientBalance, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
}

// FromError translates a service error into an error response.
// Unclassified errors are logged and reported as internal errors with the
// given fallback message so storage details never reach the client.
func FromError(w http.ResponseWriter, err error, fallback string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			Error(w, k.status, k.code, err.Error())
			return
		}
	}
	slog.Error(fallback, "error", err)
	InternalError(w, fallback)
}

// Common error responses
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, "NOT_FOUND", message)
}

func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, "FORBIDDEN", message)
}

func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, "CONFLICT", message)
}
