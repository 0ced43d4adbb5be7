// Package client implements authflow.Provider against an authflow identity
// server over HTTP. Sign-in uses the OAuth2 password grant; the resulting
// access token is kept in a CredentialStore and attached to downstream calls.
package client

import (
	"sync"
	"time"
)

// ServerCredential holds the session for a single server
type ServerCredential struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	UserEmail   string    `json:"user_email,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsExpired returns true if the access token has expired. A zero ExpiresAt never expires.
func (c *ServerCredential) IsExpired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// CredentialStore keeps one credential per server URL
type CredentialStore interface {
	// GetCredential returns nil, nil if no credential exists for the server
	GetCredential(serverURL string) (*ServerCredential, error)
	SetCredential(serverURL string, cred *ServerCredential) error
	RemoveCredential(serverURL string) error
}

// MemoryCredentialStore is a process-local CredentialStore
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]*ServerCredential
}

// NewMemoryCredentialStore creates an empty store
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{creds: make(map[string]*ServerCredential)}
}

func (s *MemoryCredentialStore) GetCredential(serverURL string) (*ServerCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[serverURL]
	if !ok {
		return nil, nil
	}
	cp := *cred
	return &cp, nil
}

func (s *MemoryCredentialStore) SetCredential(serverURL string, cred *ServerCredential) error {
	cp := *cred
	s.mu.Lock()
	s.creds[serverURL] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryCredentialStore) RemoveCredential(serverURL string) error {
	s.mu.Lock()
	delete(s.creds, serverURL)
	s.mu.Unlock()
	return nil
}
