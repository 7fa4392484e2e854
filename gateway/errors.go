package gateway

import (
	"errors"
	"strings"
)

// DefaultFallbackMessage is used when neither the error nor the caller supply a message.
const DefaultFallbackMessage = "Something went wrong. Please try again."

// Error codes reported by identity providers.
const (
	CodeIdentifierNotFound  = "form_identifier_not_found"
	CodePasswordIncorrect   = "form_password_incorrect"
	CodeIdentifierExists    = "form_identifier_exists"
	CodeParamFormatInvalid  = "form_param_format_invalid"
	CodeParamMissing        = "form_param_nil"
	CodePasswordTooShort    = "form_password_length_too_short"
	CodeCodeIncorrect       = "form_code_incorrect"
	CodeVerificationMissing = "verification_missing"
	CodeStrategyInvalid     = "strategy_for_user_invalid"
	CodeSessionNotFound     = "session_not_found"
	CodeSessionExpired      = "session_token_expired"
	CodeRegistrationMissing = "resource_not_found"
	CodePublishableKey      = "publishable_key_invalid"
)

// AuthError is a single structured failure reported by the provider.
type AuthError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	LongMessage string `json:"long_message,omitempty"`
}

// Errors is the ordered list of structured failures of one provider call.
type Errors []AuthError

// NewErrors builds a single-entry list.
func NewErrors(code, message, longMessage string) Errors {
	return Errors{{Code: code, Message: message, LongMessage: longMessage}}
}

func (e Errors) Error() string {
	if len(e) == 0 {
		return "gateway: unspecified provider error"
	}
	parts := make([]string, 0, len(e))
	for _, item := range e {
		if item.Code != "" {
			parts = append(parts, item.Code+": "+item.Message)
			continue
		}
		parts = append(parts, item.Message)
	}
	return "gateway: " + strings.Join(parts, "; ")
}

// HasCode reports whether any entry carries code.
func (e Errors) HasCode(code string) bool {
	for _, item := range e {
		if item.Code == code {
			return true
		}
	}
	return false
}

// AsErrors extracts the structured list from err, if any.
func AsErrors(err error) (Errors, bool) {
	var list Errors
	if errors.As(err, &list) {
		return list, true
	}
	return nil, false
}

// TokenRefused reports whether err says the session token itself is unknown
// or expired. Other structured failures, such as a rejected publishable key,
// say nothing about the token.
func TokenRefused(err error) bool {
	list, ok := AsErrors(err)
	if !ok {
		return false
	}
	return list.HasCode(CodeSessionNotFound) || list.HasCode(CodeSessionExpired)
}

// FirstMessage returns the first non-empty message of the structured list carried
// by err. It falls back to fallback, then to DefaultFallbackMessage, so the result
// is never empty.
func FirstMessage(err error, fallback string) string {
	if list, ok := AsErrors(err); ok {
		for _, item := range list {
			if msg := strings.TrimSpace(item.Message); msg != "" {
				return msg
			}
			if msg := strings.TrimSpace(item.LongMessage); msg != "" {
				return msg
			}
		}
	}
	if strings.TrimSpace(fallback) != "" {
		return fallback
	}
	return DefaultFallbackMessage
}
