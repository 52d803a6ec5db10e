package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenMissing occurs when no bearer token accompanies a request.
	ErrTokenMissing = errors.New("bearer token missing")
	// ErrTokenInvalid occurs when the bearer token is unknown or expired.
	ErrTokenInvalid = errors.New("bearer token invalid")
)
