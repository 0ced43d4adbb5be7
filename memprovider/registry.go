// Package memprovider provides an in-memory identity service implementing
// authflow.Provider. Accounts live only as long as the process.
package memprovider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"

	"github.com/panyam/authflow"
)

// Provider error codes
const (
	CodeUserNotFound  = "user-not-found"
	CodeWrongPassword = "wrong-password"
	CodeEmailInUse    = "email-already-in-use"
	CodeWeakPassword  = "weak-password"
	CodeInvalidEmail  = "invalid-email"
)

// DefaultMinPasswordLength is the shortest password Create accepts
const DefaultMinPasswordLength = 6

// Account is a registered user
type Account struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// User returns the public view of the account
func (a *Account) User() *authflow.User {
	return &authflow.User{ID: a.ID, Email: a.Email}
}

// Registry stores accounts keyed by lower-cased email.
type Registry struct {
	mu                sync.RWMutex
	accounts          map[string]*Account
	minPasswordLength int
	hashCost          int
	logger            *slog.Logger
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithMinPasswordLength sets the shortest accepted password
func WithMinPasswordLength(n int) RegistryOption {
	return func(r *Registry) {
		r.minPasswordLength = n
	}
}

// WithHashCost sets the bcrypt cost (tests use bcrypt.MinCost)
func WithHashCost(cost int) RegistryOption {
	return func(r *Registry) {
		r.hashCost = cost
	}
}

// WithRegistryLogger sets the logger
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty Registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		accounts:          make(map[string]*Account),
		minPasswordLength: DefaultMinPasswordLength,
		hashCost:          bcrypt.DefaultCost,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a new account
func (r *Registry) Create(ctx context.Context, email, password string) (*Account, error) {
	key := normalizeEmail(email)
	if key == "" || !strings.Contains(key, "@") {
		return nil, authflow.NewProviderError(CodeInvalidEmail, "The email address is badly formatted.")
	}
	if len(password) < r.minPasswordLength {
		return nil, authflow.NewProviderError(CodeWeakPassword,
			fmt.Sprintf("Password should be at least %d characters", r.minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, authflow.NewProviderError(CodeWeakPassword, "Password is too long")
		}
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[key]; exists {
		return nil, authflow.NewProviderError(CodeEmailInUse, "The email address is already in use by another account.")
	}

	account := &Account{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	r.accounts[key] = account

	r.logger.InfoContext(ctx, "account created", "user_id", account.ID, "email", account.Email)
	return account, nil
}

// Authenticate returns the account if password matches
func (r *Registry) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	r.mu.RLock()
	account, ok := r.accounts[normalizeEmail(email)]
	r.mu.RUnlock()

	if !ok {
		return nil, authflow.NewProviderError(CodeUserNotFound,
			"There is no user record corresponding to this identifier. The user may have been deleted.")
	}

	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		r.logger.DebugContext(ctx, "password mismatch", "user_id", account.ID)
		return nil, authflow.NewProviderError(CodeWrongPassword,
			"The password is invalid or the user does not have a password.")
	}

	return account, nil
}

// Lookup returns the account for email, if any
func (r *Registry) Lookup(email string) (*Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[normalizeEmail(email)]
	return account, ok
}

// Len returns the number of registered accounts
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}
