package momo

import (
	"errors"
	"fmt"
	"time"
)

// Lifecycle errors. Use errors.Is to classify a failure returned by the
// Manager; the typed errors below wrap the underlying cause.
var (
	ErrCredentialProvisioning = errors.New("credential provisioning failed")
	ErrTokenAcquisition       = errors.New("token acquisition failed")
	ErrStaleToken             = errors.New("stale token")
)

// Remote API errors.
var (
	ErrReferenceIDConflict = errors.New("reference id already registered")
	ErrAPIUserNotFound     = errors.New("api user not found")
	ErrInvalidCredentials  = errors.New("api user and api key not recognised")
	ErrInvalidTTL          = errors.New("token ttl out of range")
)

// ProvisioningError reports which provisioning step failed.
type ProvisioningError struct {
	Step string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCredentialProvisioning, e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() []error {
	return []error{ErrCredentialProvisioning, e.Err}
}

// TokenError wraps a failed token issuance.
type TokenError struct {
	Err error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTokenAcquisition, e.Err)
}

func (e *TokenError) Unwrap() []error {
	return []error{ErrTokenAcquisition, e.Err}
}

// StaleTokenError is returned instead of a token whose expiry has
// already passed. Seeing one means the clock or the cache is broken.
type StaleTokenError struct {
	ExpiresAt time.Time
	Now       time.Time
}

func (e *StaleTokenError) Error() string {
	return fmt.Sprintf("%s: expired at %s, now %s", ErrStaleToken,
		e.ExpiresAt.Format(time.RFC3339Nano), e.Now.Format(time.RFC3339Nano))
}

func (e *StaleTokenError) Unwrap() error { return ErrStaleToken }

// APIError is a non-success response from the MoMo API.
type APIError struct {
	Endpoint string
	Status   int
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API %s (%d): %s: %s", e.Endpoint, e.Status, e.Code, e.Message)
	}

	return fmt.Sprintf("API %s returned status %d: %s", e.Endpoint, e.Status, e.Message)
}

// TransientError wraps an error that is likely temporary and safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError. Retrying is left to the caller.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
