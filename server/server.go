// Package server is a small identity server for authflow clients. It issues
// HS256 access tokens through the OAuth2 password grant, registers accounts
// through a JSON signup endpoint and serves the caller's profile.
//
// Accounts are held in a memprovider.Registry, so nothing survives a restart.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/panyam/authflow"
	"github.com/panyam/authflow/memprovider"
)

// TokenRequest is the password grant request. It is read from a form body
// (RFC 6749) or from JSON.
type TokenRequest struct {
	GrantType string `json:"grant_type"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
}

// TokenResponse is returned by the token and signup endpoints
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ErrorResponse is an OAuth 2.0 style error body
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// SignupRequest is the body of the signup endpoint
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserInfo is the public profile of an account
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignupResponse carries the new account and a token for it
type SignupResponse struct {
	User UserInfo `json:"user"`
	TokenResponse
}

// Server serves the identity endpoints
type Server struct {
	cfg      Config
	registry *memprovider.Registry
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	requests *prometheus.CounterVec
	router   *mux.Router
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPrometheus registers the request counter on reg and serves reg at /metrics
func WithPrometheus(reg *prometheus.Registry) Option {
	return func(s *Server) {
		reg.MustRegister(s.requests)
		s.gatherer = reg
	}
}

// New creates a Server over registry
func New(cfg Config, registry *memprovider.Registry, opts ...Option) *Server {
	cfg.ensureDefaults()
	s := &Server{
		cfg:      cfg,
		registry: registry,
		logger:   slog.Default(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authflow_server_requests_total",
			Help: "Identity server requests by endpoint and result.",
		}, []string{"endpoint", "result"}),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc(cfg.TokenPath, s.handleToken).Methods(http.MethodPost)
	r.HandleFunc(cfg.SignupPath, s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc(cfg.ProfilePath, s.handleProfile).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe listens on cfg.Addr and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("identity server started", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return oops.Code("SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	<-errCh
	s.logger.Info("identity server stopped")
	return nil
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	req, err := parseTokenRequest(r)
	if err != nil {
		s.count("token", "bad_request")
		s.errorResponse(w, "invalid_request", "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.GrantType != "password" {
		s.count("token", "bad_request")
		s.errorResponse(w, "unsupported_grant_type", "Grant type not supported", http.StatusBadRequest)
		return
	}

	account, err := s.registry.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.count("token", "rejected")
		s.logger.InfoContext(r.Context(), "login failed", "email", req.Username, "error", err)
		s.errorResponse(w, "invalid_grant", authflow.ErrorDetail(err), http.StatusUnauthorized)
		return
	}

	accessToken, expiresIn, err := s.createAccessToken(account)
	if err != nil {
		s.count("token", "error")
		s.logger.ErrorContext(r.Context(), "creating access token", "error", err)
		s.errorResponse(w, "server_error", "Failed to create token", http.StatusInternalServerError)
		return
	}

	s.count("token", "ok")
	s.writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
	})
}

func parseTokenRequest(r *http.Request) (*TokenRequest, error) {
	var req TokenRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	req.GrantType = r.PostForm.Get("grant_type")
	req.Username = r.PostForm.Get("username")
	req.Password = r.PostForm.Get("password")
	req.Scope = r.PostForm.Get("scope")
	req.ClientID = r.PostForm.Get("client_id")
	return &req, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.count("signup", "bad_request")
		s.errorResponse(w, "invalid_request", "Invalid request body", http.StatusBadRequest)
		return
	}

	account, err := s.registry.Create(r.Context(), req.Email, req.Password)
	if err != nil {
		var perr *authflow.ProviderError
		if errors.As(err, &perr) {
			s.count("signup", "rejected")
			status := http.StatusBadRequest
			if perr.Code == memprovider.CodeEmailInUse {
				status = http.StatusConflict
			}
			s.errorResponse(w, perr.Code, perr.Message, status)
			return
		}
		s.count("signup", "error")
		s.logger.ErrorContext(r.Context(), "creating account", "error", err)
		s.errorResponse(w, "server_error", "Failed to create account", http.StatusInternalServerError)
		return
	}

	accessToken, expiresIn, err := s.createAccessToken(account)
	if err != nil {
		s.count("signup", "error")
		s.logger.ErrorContext(r.Context(), "creating access token", "error", err)
		s.errorResponse(w, "server_error", "Failed to create token", http.StatusInternalServerError)
		return
	}

	s.count("signup", "ok")
	s.writeJSON(w, http.StatusCreated, SignupResponse{
		User: UserInfo{ID: account.ID, Email: account.Email},
		TokenResponse: TokenResponse{
			AccessToken: accessToken,
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		},
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		s.count("profile", "unauthorized")
		s.authError(w, "missing bearer token")
		return
	}
	claims, err := s.ValidateAccessToken(token)
	if err != nil {
		s.count("profile", "unauthorized")
		s.authError(w, err.Error())
		return
	}

	account, found := s.registry.Lookup(claims.Email)
	if !found || account.ID != claims.UserID {
		s.count("profile", "unauthorized")
		s.authError(w, "unknown user")
		return
	}

	s.count("profile", "ok")
	s.writeJSON(w, http.StatusOK, UserInfo{ID: account.ID, Email: account.Email})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (s *Server) count(endpoint, result string) {
	s.requests.WithLabelValues(endpoint, result).Inc()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, code, description string, status int) {
	s.writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}

func (s *Server) authError(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="authflow"`)
	s.errorResponse(w, "unauthorized", description, http.StatusUnauthorized)
}
