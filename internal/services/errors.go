package services

import "errors"

// Validation
var (
	ErrMissingFields   = errors.New("missing required fields")
	ErrInvalidAccount  = errors.New("invalid or inactive account")
	ErrInvalidOutcome  = errors.New("outcome must be approved or denied")
	ErrInvalidProvider = errors.New("invalid notification provider")
)

// Identity
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountLocked        = errors.New("account locked")
	ErrAccountExists        = errors.New("username or email already exists")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidEndpointToken = errors.New("invalid endpoint token")
)

// Ownership and lookup
var (
	ErrAccessDenied        = errors.New("access denied")
	ErrEndpointNotFound    = errors.New("endpoint not found")
	ErrRequestNotFound     = errors.New("request not found")
	ErrProviderNotFound    = errors.New("notification provider not found")
	ErrEndpointUnavailable = errors.New("endpoint not found or access denied")
)

// ErrAlreadyProcessed is returned when a decision targets a request that is no
// longer pending: already decided, concurrently decided, or expired.
var ErrAlreadyProcessed = errors.New("request not found or already processed")
