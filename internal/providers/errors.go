package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"scenecast-backend/internal/models"
)

var (
	// ErrUnavailable marks transient failures: timeouts, network errors,
	// rate limits and provider-side 5xx. Callers may retry.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrRejected marks definitive failures. Retrying will not help.
	ErrRejected = errors.New("provider rejected request")
)

type Kind int

const (
	KindUnavailable Kind = iota
	KindRejected
)

type Error struct {
	Provider   models.Provider
	Op         string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrRejected:
		return e.Kind == KindRejected
	}
	return false
}

func unavailable(provider models.Provider, op string, err error) *Error {
	return &Error{Provider: provider, Op: op, Kind: KindUnavailable, Err: err}
}

func rejected(provider models.Provider, op string, err error) *Error {
	return &Error{Provider: provider, Op: op, Kind: KindRejected, Err: err}
}

// statusError classifies a non-success HTTP response.
func statusError(provider models.Provider, op string, code int, body []byte) *Error {
	kind := KindRejected
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500 {
		kind = KindUnavailable
	}
	return &Error{
		Provider:   provider,
		Op:         op,
		Kind:       kind,
		StatusCode: code,
		Err:        fmt.Errorf("%s", truncate(string(body), 512)),
	}
}

// transportError wraps a failed round trip. Deadline and cancellation are
// both transient from the caller's point of view.
func transportError(provider models.Provider, op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return unavailable(provider, op, fmt.Errorf("timed out: %w", err))
	}
	return unavailable(provider, op, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
