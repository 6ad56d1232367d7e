package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	domainerrors "github.com/apphub/apphub-server/internal/errors"
	"github.com/apphub/apphub-server/internal/http/response"
	"github.com/apphub/apphub-server/internal/store"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
// Server errors are logged and reported to Sentry when a client is bound.
// Their response carries an incidentId that appears in both.
func RegisterErrorHandler(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		apiErr := toAPIError(status, message, errs)
		if apiErr.status >= http.StatusInternalServerError {
			reportServerError(logger, apiErr, errs)
		}
		return apiErr
	}
}

func toAPIError(status int, message string, errs []error) *APIError {
	for _, err := range errs {
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return &APIError{
				status:  domainErr.HTTPStatus(),
				Code:    string(domainErr.Code),
				Message: domainErr.Message,
				Details: domainErr.Details,
			}
		}

		var storeErr *store.Error
		if errors.As(err, &storeErr) {
			return &APIError{
				status:  storeErr.HTTPCode(),
				Code:    string(response.CodeForStatus(storeErr.HTTPCode())),
				Message: storeErr.Message,
			}
		}
	}

	// Request validation failures from huma carry field-level details.
	if details := validationDetails(errs); len(details) > 0 || status == http.StatusUnprocessableEntity {
		apiErr := &APIError{
			status:  http.StatusBadRequest,
			Code:    string(domainerrors.CodeValidation),
			Message: message,
		}
		if len(details) > 0 {
			apiErr.Details = details
		}
		return apiErr
	}

	return &APIError{
		status:  status,
		Code:    string(response.CodeForStatus(status)),
		Message: message,
	}
}

// validationDetails maps huma error locations (body.url, query.limit) to messages.
func validationDetails(errs []error) map[string]string {
	details := make(map[string]string)
	for _, err := range errs {
		var detail *huma.ErrorDetail
		if !errors.As(err, &detail) {
			continue
		}
		field := strings.TrimPrefix(detail.Location, "body.")
		if field == "" {
			field = "body"
		}
		if _, exists := details[field]; !exists {
			details[field] = detail.Message
		}
	}
	return details
}

func reportServerError(logger *slog.Logger, apiErr *APIError, errs []error) {
	cause := errors.Join(errs...)
	if cause == nil {
		cause = apiErr
	}

	incidentID := uuid.NewString()
	if apiErr.Details == nil {
		apiErr.Details = map[string]string{"incidentId": incidentID}
	}

	logger.Error("request failed",
		"status", apiErr.status,
		"code", apiErr.Code,
		"incident_id", incidentID,
		"error", cause,
	)

	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("incident_id", incidentID)
			hub.CaptureException(cause)
		})
	}
}
