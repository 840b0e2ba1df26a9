package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrBackendUnavailable is returned when no live backend connection exists.
	ErrBackendUnavailable = goerr.New("backend unavailable")

	// ErrNotFound is returned when the target record or blob does not exist.
	ErrNotFound = goerr.New("not found")

	// ErrInvalidCredentials is returned when sign-in is rejected.
	ErrInvalidCredentials = goerr.New("invalid email or password")

	// ErrTransport is returned when moving bytes to or from blob storage fails.
	ErrTransport = goerr.New("transport error")

	// ErrValidation is returned when a payload does not satisfy its collection shape.
	ErrValidation = goerr.New("validation failed")

	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = goerr.New("conflict")
)
