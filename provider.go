package authflow

import (
	"context"
	"errors"
)

// User is the authenticated account as reported by a Provider.
// Email is the only field the controllers read.
type User struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email"`
}

// Provider is the remote identity service the controllers talk to.
type Provider interface {
	// Subscribe registers fn for session changes. fn is called once right away
	// with the current user (nil when signed out) and again on every change.
	// The returned func removes the registration.
	Subscribe(fn func(*User)) (unsubscribe func())

	// SignIn verifies credentials and starts a session
	SignIn(ctx context.Context, email, password string) (*User, error)

	// CreateAccount registers a new account
	CreateAccount(ctx context.Context, email, password string) (*User, error)

	// SignOut clears the current session
	SignOut(ctx context.Context) error
}

// ProviderError is a failure reported by the identity service.
// Message is suitable for showing to the user.
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

// NewProviderError creates a ProviderError
func NewProviderError(code, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "provider error"
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorDetail returns the provider-supplied detail for err, or "" if there is none.
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.Message != "" {
			return perr.Message
		}
		return perr.Code
	}
	return err.Error()
}

// failureMessage joins a fixed prefix with the provider detail, when there is one.
func failureMessage(prefix string, err error) string {
	if detail := ErrorDetail(err); detail != "" {
		return prefix + "\n" + detail
	}
	return prefix
}
