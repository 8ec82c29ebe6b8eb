// Package common defines shared constants and sentinel errors used across
// the account service and its client. Callers should use errors.Is to match
// these values; lower layers wrap them with fmt.Errorf("...: %w").
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Input errors.
	ErrValidation          = errors.New("validation error")
	ErrDuplicateIdentifier = errors.New("username or email already exists")
	ErrUploadFailed        = errors.New("upload failed")

	// Credential errors. The same value is returned for an unknown account
	// and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired           = errors.New("token expired")
	ErrSessionExpiredOrReused = errors.New("refresh token is expired or used")
)
