package service

import (
	"errors"
	"fmt"

	domainerrors "github.com/apphub/apphub-server/internal/errors"
	"github.com/apphub/apphub-server/internal/store"
)

// mapStoreError converts store errors into domain errors. Domain errors pass
// through unchanged; anything else is a backend failure wrapped with op.
func mapStoreError(err error, op string) error {
	if err == nil {
		return nil
	}

	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domainerrors.NotFound(storeErr.Message).WithCause(err)
		case errors.Is(err, store.ErrAlreadyExists):
			return domainerrors.AlreadyExists(storeErr.Message).WithCause(err)
		case errors.Is(err, store.ErrInvalidInput):
			return domainerrors.Validation(storeErr.Message).WithCause(err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
