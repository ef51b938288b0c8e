package common

import "errors"

var (
	// Storage errors.
	ErrorNotFound = errors.New("not found")

	// Token errors.
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrNoValidToken  = errors.New("no valid access token")
	ErrLoginRequired = errors.New("login required")

	// Validation errors.
	ErrorValidation = errors.New("validation error")
)
