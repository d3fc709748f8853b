package orchestrator

import (
	"errors"
	"fmt"

	"scenecast-backend/internal/database"
	"scenecast-backend/internal/providers"
)

var (
	ErrNotFound       = database.ErrNotFound
	ErrConflict       = errors.New("scene already has an active video task")
	ErrInvalidState   = errors.New("operation not valid for current task status")
	ErrUnauthorized   = errors.New("project does not belong to caller")
	ErrInvalidRequest = errors.New("invalid request")

	ErrProviderUnavailable = providers.ErrUnavailable
	ErrProviderRejected    = providers.ErrRejected
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// providerError makes sure an adapter error carries one of the provider
// sentinels. Unclassified errors are treated as transient.
func providerError(err error) error {
	if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderRejected) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
