package authflow

import (
	"errors"
	"strings"
)

var (
	// ErrMissingPublishableKey is returned when no publishable key is configured.
	ErrMissingPublishableKey = errors.New("missing publishable key")
	// ErrInvalidConfig wraps every other configuration failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNotLoaded rejects submissions made before boot rehydration finished.
	ErrNotLoaded = errors.New("auth state not loaded")
	// ErrSubmissionInFlight rejects a submission while the same flow is waiting on the provider.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrRegistrationExists rejects a second Create on a sign-up flow.
	ErrRegistrationExists = errors.New("registration already created")
	// ErrNotPendingVerification rejects Verify before a registration was created.
	ErrNotPendingVerification = errors.New("no registration pending verification")
	// ErrProvider wraps failures reported by the identity provider.
	ErrProvider = errors.New("identity provider error")
	// ErrVerificationFailed is returned for a well-formed but incomplete verification.
	ErrVerificationFailed = errors.New("email verification failed")
	// ErrDiscarded is returned when the caller's context ended before the provider answered.
	ErrDiscarded = errors.New("result discarded")
	// ErrBuilderUsed is returned by a second Build on the same builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrMissingGateway is returned by Build without an identity provider gateway.
	ErrMissingGateway = errors.New("missing identity provider gateway")
)

// ConfigurationError is fatal at startup; no client is constructed.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("authflow: configuration: ")
	b.WriteString(e.Field)
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error {
	if e.Err == nil {
		return ErrInvalidConfig
	}
	return e.Err
}

func configErr(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}
