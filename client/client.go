package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
	"golang.org/x/oauth2"

	"github.com/panyam/authflow"
)

// Error codes for failures that did not come from the server's error body
const (
	CodeNetworkRequestFailed = "network-request-failed"
	CodeInvalidResponse      = "invalid-response"
)

// AuthClient is an authflow.Provider backed by an identity server
type AuthClient struct {
	authflow.SessionFeed

	cfg           Config
	serverURL     string
	store         CredentialStore
	baseTransport http.RoundTripper
	logger        *slog.Logger
}

// signupRequest / signupResponse mirror the server's signup endpoint
type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorDesc string `json:"error_description,omitempty"`
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithCredentialStore sets where the session is kept (default: in memory)
func WithCredentialStore(store CredentialStore) ClientOption {
	return func(c *AuthClient) {
		c.store = store
	}
}

// WithTransport sets a custom base transport (for proxies, TLS config, tests)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *AuthClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewAuthClient creates a client for cfg.ServerURL. If the store already holds
// an unexpired credential for that server, the client starts signed in.
func NewAuthClient(cfg Config, opts ...ClientOption) *AuthClient {
	cfg.ensureDefaults()

	serverURL := cfg.ServerURL
	if u, err := url.Parse(serverURL); err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}

	c := &AuthClient{
		cfg:           cfg,
		serverURL:     serverURL,
		store:         NewMemoryCredentialStore(),
		baseTransport: http.DefaultTransport,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cred, err := c.store.GetCredential(c.serverURL); err != nil {
		c.logger.Warn("reading stored credential", "server", c.serverURL, "error", err)
	} else if cred != nil && !cred.IsExpired() {
		c.Publish(&authflow.User{ID: cred.UserID, Email: cred.UserEmail})
	}
	return c
}

// ServerURL returns the normalized server URL
func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

func (c *AuthClient) baseClient() *http.Client {
	return &http.Client{Transport: c.baseTransport, Timeout: c.cfg.Timeout}
}

// SignIn exchanges the credentials for an access token with the password grant
func (c *AuthClient) SignIn(ctx context.Context, email, password string) (*authflow.User, error) {
	oc := &oauth2.Config{
		ClientID: c.cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.serverURL + c.cfg.TokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	tok, err := oc.PasswordCredentialsToken(context.WithValue(ctx, oauth2.HTTPClient, c.baseClient()), email, password)
	if err != nil {
		return nil, c.tokenError(err)
	}

	user, err := c.establish(tok.AccessToken, tok.TokenType, tok.Expiry)
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "signed in", "server", c.serverURL, "user_id", user.ID)
	return user, nil
}

// CreateAccount registers a new account. When the server returns a token
// with the account, the client is signed in as the new user.
func (c *AuthClient) CreateAccount(ctx context.Context, email, password string) (*authflow.User, error) {
	body, err := json.Marshal(signupRequest{Email: email, Password: password})
	if err != nil {
		return nil, oops.Code("ENCODE_FAILED").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+c.cfg.SignupPath, bytes.NewReader(body))
	if err != nil {
		return nil, oops.Code("REQUEST_FAILED").With("path", c.cfg.SignupPath).Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.baseClient().Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, responseError(resp.StatusCode, data)
	}

	var out signupResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &authflow.ProviderError{Code: CodeInvalidResponse, Message: "Invalid response from server", Err: err}
	}

	if out.AccessToken == "" {
		return &authflow.User{ID: out.User.ID, Email: out.User.Email}, nil
	}

	var expiry time.Time
	if out.ExpiresIn > 0 {
		expiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return c.establish(out.AccessToken, out.TokenType, expiry)
}

// SignOut forgets the stored credential and reports the signed-out state
func (c *AuthClient) SignOut(ctx context.Context) error {
	if err := c.store.RemoveCredential(c.serverURL); err != nil {
		return oops.Code("CREDENTIAL_REMOVE_FAILED").With("server", c.serverURL).Wrap(err)
	}
	c.logger.InfoContext(ctx, "signed out", "server", c.serverURL)
	c.Publish(nil)
	return nil
}

// AccessToken returns the stored token while it is still valid
func (c *AuthClient) AccessToken() (string, bool) {
	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil || cred == nil || cred.IsExpired() {
		return "", false
	}
	return cred.AccessToken, true
}

// HTTPClient returns a client that sends the session's bearer token
func (c *AuthClient) HTTPClient() *http.Client {
	return &http.Client{
		Transport: &AuthTransport{Base: c.baseTransport, Source: c},
		Timeout:   c.cfg.Timeout,
	}
}

// FetchProfile asks the server who the current token belongs to
func (c *AuthClient) FetchProfile(ctx context.Context) (*authflow.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+c.cfg.ProfilePath, nil)
	if err != nil {
		return nil, oops.Code("REQUEST_FAILED").With("path", c.cfg.ProfilePath).Wrap(err)
	}

	resp, err := c.HTTPClient().Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp.StatusCode, data)
	}

	var profile struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, &authflow.ProviderError{Code: CodeInvalidResponse, Message: "Invalid response from server", Err: err}
	}
	return &authflow.User{ID: profile.ID, Email: profile.Email}, nil
}

// establish stores the credential for accessToken and publishes its user.
// The token is only decoded here; the server verifies it on use.
func (c *AuthClient) establish(accessToken, tokenType string, expiry time.Time) (*authflow.User, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, &authflow.ProviderError{Code: CodeInvalidResponse, Message: "Invalid access token from server", Err: err}
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" {
		return nil, &authflow.ProviderError{Code: CodeInvalidResponse, Message: "Access token has no subject"}
	}

	cred := &ServerCredential{
		AccessToken: accessToken,
		TokenType:   tokenType,
		UserID:      sub,
		UserEmail:   email,
		ExpiresAt:   expiry,
		CreatedAt:   time.Now(),
	}
	if err := c.store.SetCredential(c.serverURL, cred); err != nil {
		return nil, oops.Code("CREDENTIAL_STORE_FAILED").With("server", c.serverURL).Wrap(err)
	}

	user := &authflow.User{ID: sub, Email: email}
	c.Publish(user)
	return user, nil
}

func (c *AuthClient) tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		code := re.ErrorCode
		if code == "" && re.Response != nil {
			code = fmt.Sprintf("http-%d", re.Response.StatusCode)
		}
		return &authflow.ProviderError{Code: code, Message: re.ErrorDescription, Err: err}
	}
	return networkError(err)
}

func networkError(err error) error {
	return &authflow.ProviderError{
		Code:    CodeNetworkRequestFailed,
		Message: "A network error (such as timeout, interrupted connection or unreachable host) has occurred.",
		Err:     err,
	}
}

func responseError(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error == "" {
		return &authflow.ProviderError{Code: fmt.Sprintf("http-%d", status), Message: fmt.Sprintf("Server returned HTTP %d", status)}
	}
	return &authflow.ProviderError{Code: er.Error, Message: er.ErrorDesc}
}

var _ authflow.Provider = (*AuthClient)(nil)
