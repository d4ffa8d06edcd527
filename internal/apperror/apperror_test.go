package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPassesThroughAppError(t *testing.T) {
	original := NotFound("user not found")

	got := From(original)
	assert.Same(t, original, got)
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("pq: connection refused")

	got := From(cause)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, TypeInternal, got.Type)
	assert.Equal(t, "internal server error", got.Msg)
	require.ErrorIs(t, got, cause)
}

func TestFromUnwrapsNestedAppError(t *testing.T) {
	inner := Forbidden()
	wrapped := errors.Join(errors.New("outer"), inner)

	got := From(wrapped)
	assert.Same(t, inner, got)
}

func TestInvalidCredentialsMessageIsUniform(t *testing.T) {
	// one message for unknown email and wrong password
	assert.Equal(t, InvalidCredentials().Msg, InvalidCredentials().Msg)
	assert.Equal(t, http.StatusBadRequest, InvalidCredentials().Status)
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause, "failed to persist session")

	assert.Contains(t, err.Error(), "failed to persist session")
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, cause, errors.Unwrap(err))
}
