package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/domain"
	domainerrors "github.com/apphub/apphub-server/internal/errors"
	"github.com/apphub/apphub-server/internal/validation"
)

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	app := domain.App{Name: "GitHub", URL: "https://github.com"}
	assert.NoError(t, v.Validate(app))
	assert.NoError(t, v.Validate(roleRequest{Role: "ADMIN"}))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		input     any
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing app name",
			input:     domain.App{URL: "https://github.com"},
			wantField: "name",
			wantMsg:   "is required",
		},
		{
			name:      "invalid app url",
			input:     domain.App{Name: "GitHub", URL: "not a url"},
			wantField: "url",
			wantMsg:   "must be an http or https URL",
		},
		{
			name:      "script url",
			input:     domain.App{Name: "Evil", URL: "javascript:alert(1)"},
			wantField: "url",
			wantMsg:   "must be an http or https URL",
		},
		{
			name:      "relative url",
			input:     domain.App{Name: "Docs", URL: "/docs"},
			wantField: "url",
			wantMsg:   "must be an http or https URL",
		},
		{
			name:      "unknown role",
			input:     roleRequest{Role: "SUPERUSER"},
			wantField: "role",
			wantMsg:   "must be one of: USER ADMIN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok, "details should be a field map")
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_ValidateVar(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.ValidateVar("name", "Productivity", "required,max=100"))

	err := v.ValidateVar("name", "", "required,max=100")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, map[string]string{"name": "is required"}, domainErr.Details)
}
