package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels matched by StatusError through errors.Is.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrAuthRequired = errors.New("kitchen pin authentication required")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrTransport    = errors.New("backend unreachable")
)

// StatusError is a non-2xx response from the backend.
// Message carries the backend's explanation and is meant for logs, not users.
type StatusError struct {
	Op          string
	StatusCode  int
	Message     string
	RequiresPin bool
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.Message)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrAuthRequired:
		return e.StatusCode == http.StatusUnauthorized && e.RequiresPin
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// IsAuthLoss reports whether err means the kitchen credential is missing,
// expired or insufficient. Any 401 or 403 from a kitchen endpoint counts.
func IsAuthLoss(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
