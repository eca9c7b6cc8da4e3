// Package service provides the business logic layer between HTTP handlers
// and the delivery engine.
package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/jmylchreest/soundrelay/internal/streaming"
)

// Request errors. They are only returned before any response byte has been
// written, so callers can still choose the status code.
var (
	// ErrInvalidRequest indicates malformed client input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrForbidden indicates the user may not access the resource.
	ErrForbidden = errors.New("access denied")
	// ErrNotFound indicates the resource does not exist.
	ErrNotFound = errors.New("not found")
)

// StatusCode maps an error returned by this package onto an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, streaming.ErrInvalidBitrate):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func parseID(kind, s string) (models.ULID, error) {
	id, err := models.ParseULID(s)
	if err != nil {
		return models.ULID{}, invalidf("%s id %q", kind, s)
	}
	return id, nil
}
