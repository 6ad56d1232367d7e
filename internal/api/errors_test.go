package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/apphub/apphub-server/internal/errors"
	"github.com/apphub/apphub-server/internal/store"
)

func newError(t *testing.T, status int, msg string, errs ...error) *APIError {
	t.Helper()
	RegisterErrorHandler(nil)
	apiErr, ok := huma.NewError(status, msg, errs...).(*APIError)
	require.True(t, ok)
	return apiErr
}

func TestNewError_DomainError(t *testing.T) {
	apiErr := newError(t, http.StatusInternalServerError, "ignored",
		domainerrors.Validation("bad input").WithDetails(map[string]string{"name": "required"}))

	assert.Equal(t, http.StatusBadRequest, apiErr.GetStatus())
	assert.Equal(t, "VALIDATION", apiErr.Code)
	assert.Equal(t, map[string]string{"name": "required"}, apiErr.Details)
}

func TestNewError_StoreError(t *testing.T) {
	apiErr := newError(t, http.StatusInternalServerError, "ignored", store.NotFound("app", "app-1"))

	assert.Equal(t, http.StatusNotFound, apiErr.GetStatus())
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestNewError_HumaValidation(t *testing.T) {
	apiErr := newError(t, http.StatusUnprocessableEntity, "validation failed",
		&huma.ErrorDetail{Location: "body.url", Message: "expected string"},
		&huma.ErrorDetail{Location: "body.url", Message: "second message is dropped"},
		&huma.ErrorDetail{Location: "query.limit", Message: "expected number >= 0"},
	)

	assert.Equal(t, http.StatusBadRequest, apiErr.GetStatus())
	assert.Equal(t, "VALIDATION", apiErr.Code)
	assert.Equal(t, map[string]string{
		"url":         "expected string",
		"query.limit": "expected number >= 0",
	}, apiErr.Details)
}

func TestNewError_ServerErrorCarriesIncidentID(t *testing.T) {
	apiErr := newError(t, http.StatusInternalServerError, "internal server error", errors.New("connection reset"))

	assert.Equal(t, http.StatusInternalServerError, apiErr.GetStatus())
	assert.Equal(t, "INTERNAL", apiErr.Code)

	details, ok := apiErr.Details.(map[string]string)
	require.True(t, ok)
	_, err := uuid.Parse(details["incidentId"])
	assert.NoError(t, err)
}
