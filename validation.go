package authflow

import "regexp"

// Form field names
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
)

// Validation error codes
const (
	ErrCodeMissingField     = "missing_field"
	ErrCodeInvalidEmail     = "invalid_email"
	ErrCodePasswordMismatch = "password_mismatch"
)

// User-facing validation messages
const (
	MsgEmailRequired    = "Email field is required."
	MsgInvalidEmail     = "Invalid email."
	MsgPasswordRequired = "Password field is required."
	MsgPasswordMismatch = "Passwords must match."
)

// localpart and domain are alphanumeric only, tld is alphabetic only
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9]+@[a-zA-Z0-9]+\.[A-Za-z]+$`)

// ValidationError describes the first field that failed local validation.
type ValidationError struct {
	Code    string
	Message string
	Field   string
}

// NewValidationError creates a ValidationError
func NewValidationError(code, message, field string) *ValidationError {
	return &ValidationError{Code: code, Message: message, Field: field}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsNonEmpty returns true if s has at least one character
func IsNonEmpty(s string) bool {
	return s != ""
}

// IsValidEmail returns true if s looks like localpart@domain.tld
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// PasswordsMatch returns true if both entries are identical
func PasswordsMatch(a, b string) bool {
	return a == b
}

// ValidateLogin checks sign-in credentials in order and returns the first failure, or nil.
func ValidateLogin(email, password string) *ValidationError {
	if !IsNonEmpty(email) {
		return NewValidationError(ErrCodeMissingField, MsgEmailRequired, FieldEmail)
	}
	if !IsValidEmail(email) {
		return NewValidationError(ErrCodeInvalidEmail, MsgInvalidEmail, FieldEmail)
	}
	if !IsNonEmpty(password) {
		return NewValidationError(ErrCodeMissingField, MsgPasswordRequired, FieldPassword)
	}
	return nil
}

// ValidateSignup applies the sign-in rules and then requires the confirmation to match.
func ValidateSignup(email, password, confirmPassword string) *ValidationError {
	if err := ValidateLogin(email, password); err != nil {
		return err
	}
	if !PasswordsMatch(password, confirmPassword) {
		return NewValidationError(ErrCodePasswordMismatch, MsgPasswordMismatch, FieldConfirmPassword)
	}
	return nil
}
