package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/smartrewards/pkg/apperror"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.Validation("points must be positive"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{fmt.Errorf("group %w", apperror.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{apperror.ErrPermission, http.StatusForbidden, "FORBIDDEN"},
		{apperror.ErrNotMember, http.StatusForbidden, "NOT_MEMBER"},
		{apperror.ErrDuplicateMembership, http.StatusConflict, "DUPLICATE_MEMBERSHIP"},
		{apperror.ErrCapacity, http.StatusConflict, "CAPACITY_REACHED"},
		{apperror.InvalidState("cannot join"), http.StatusConflict, "INVALID_STATE"},
		{apperror.ErrInsufficientBalance, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(rec, tt.err, "Failed to do the thing")

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body APIResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestFromError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(rec, errors.New("pq: password authentication failed"), "Failed to list groups")

	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), "Failed to list groups")
}

func TestJSONWithMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONWithMeta(rec, http.StatusOK, []int{1, 2}, &Meta{Page: 1, PerPage: 2, Total: 5, TotalPages: 3})

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.NotNil(t, body.Meta)
	assert.Equal(t, 3, body.Meta.TotalPages)
}
