package server

import "errors"

// Errors surfaced to the originating connection as "error" frames. Handlers
// wrap them with extra context; callers match with errors.Is.
var (
	ErrEmptyName        = errors.New("room name cannot be empty")
	ErrAlreadyExists    = errors.New("room already exists")
	ErrMissingPassword  = errors.New("private rooms require a password")
	ErrNotFound         = errors.New("room not found")
	ErrUnauthorized     = errors.New("incorrect room password")
	ErrNotAuthenticated = errors.New("must join a room first")
	ErrMalformedPayload = errors.New("malformed payload")
)

// errorKind maps an error onto its taxonomy label for metrics and logs.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrEmptyName):
		return "empty_name"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrMissingPassword):
		return "missing_password"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	default:
		return "internal"
	}
}
