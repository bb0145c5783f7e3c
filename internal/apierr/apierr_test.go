package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupFallsBackToServerFault(t *testing.T) {
	def := Lookup(Code("NOT_A_REAL_CODE"))
	assert.Equal(t, ServerFault, def.Code)
	assert.Equal(t, http.StatusInternalServerError, def.Status)
}

func TestLookupKnownCode(t *testing.T) {
	def := Lookup(AuthzForbidden)
	assert.Equal(t, http.StatusForbidden, def.Status)
	assert.Equal(t, CategoryAuthorization, def.Category)
}

func TestErrorMessageWrapsCause(t *testing.T) {
	cause := errors.New("db timeout")
	err := New(ServerFault, cause)

	assert.Contains(t, err.Error(), "an unexpected error occurred")
	assert.Contains(t, err.Error(), "db timeout")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := New(NotFound, nil)
	assert.Equal(t, "resource not found", err.Error())
}

func TestValidationBuildsDetails(t *testing.T) {
	err := Validation(FieldError{Field: "email", Message: "required", Type: "required"})
	assert.Equal(t, ValidationFailed, err.Code)
	assert.Len(t, err.Details, 1)
	assert.Equal(t, "email", err.Details[0].Field)
}

func TestRenderProductionModeOmitsDebug(t *testing.T) {
	err := New(ServerFault, errors.New("internal secret detail"))
	status, resp := Render(err, "req-123", false)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, string(ServerFault), resp.ErrorCode)
	assert.Nil(t, resp.Debug)
}

func TestRenderDevModeIncludesDebug(t *testing.T) {
	err := New(ServerFault, errors.New("internal secret detail"))
	status, resp := Render(err, "req-123", true)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotNil(t, resp.Debug)
	assert.Equal(t, "req-123", resp.Debug.RequestID)
	assert.Equal(t, "internal secret detail", resp.Debug.Cause)
}

func TestRenderValidationIncludesDetails(t *testing.T) {
	err := Validation(FieldError{Field: "name", Message: "required", Type: "required"})
	status, resp := Render(err, "req-1", false)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Len(t, resp.Details, 1)
}
