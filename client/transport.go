package client

import (
	"net/http"
)

// TokenSource yields the current access token, if there is one
type TokenSource interface {
	AccessToken() (string, bool)
}

// AuthTransport wraps an http.RoundTripper to add Authorization headers
type AuthTransport struct {
	Base   http.RoundTripper
	Source TokenSource
}

// RoundTrip implements http.RoundTripper
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Source != nil {
		if token, ok := t.Source.AccessToken(); ok {
			// don't mutate the caller's request
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
