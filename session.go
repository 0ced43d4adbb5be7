package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Phase is the app-level session state.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseShowLogin
	PhaseShowSignup
	PhaseLoggedIn
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseShowLogin:
		return "login"
	case PhaseShowSignup:
		return "signup"
	case PhaseLoggedIn:
		return "logged_in"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrInvalidTransition is returned for a navigation intent the current phase does not allow
var ErrInvalidTransition = errors.New("invalid session transition")

// Session is a snapshot of the app state. UserEmail is set only in PhaseLoggedIn.
type Session struct {
	Phase     Phase
	UserEmail string
}

// LoggedIn returns true if a user is signed in
func (s Session) LoggedIn() bool {
	return s.Phase == PhaseLoggedIn
}

// Greeting returns the text shown to a signed-in user
func (s Session) Greeting() string {
	if !s.LoggedIn() {
		return ""
	}
	return "Hello " + s.UserEmail
}

// App is the process-wide session state machine. It starts in PhaseLoading and
// moves in and out of PhaseLoggedIn only when the provider reports a session
// change. While signed out it owns the single live form (login or signup).
type App struct {
	provider Provider
	opts     options
	formOpts []Option

	subMu       sync.Mutex
	unsubscribe func()

	// deliverMu orders listener deliveries the same way form.deliverMu does
	deliverMu sync.Mutex

	mu        sync.Mutex
	session   Session
	login     *LoginForm
	signup    *SignUpForm
	listeners listenerSet[Session]
}

// NewApp creates an App in PhaseLoading. Call Start to begin listening to p.
func NewApp(p Provider, opts ...Option) *App {
	return &App{
		provider: p,
		opts:     newOptions(opts),
		formOpts: opts,
		session:  Session{Phase: PhaseLoading},
	}
}

// Start subscribes to the provider's session changes. It is a no-op while a
// subscription is already held.
func (a *App) Start() {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	if a.unsubscribe != nil {
		return
	}
	a.unsubscribe = a.provider.Subscribe(a.handleSessionChange)
}

// Close releases the provider subscription. Start may be called again afterwards.
func (a *App) Close() {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

func (a *App) handleSessionChange(u *User) {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	a.mu.Lock()
	if u != nil {
		a.session = Session{Phase: PhaseLoggedIn, UserEmail: u.Email}
		a.login = nil
		a.signup = nil
	} else {
		// keep a login form the user is already typing into
		if a.session.Phase != PhaseShowLogin || a.login == nil {
			a.login = NewLoginForm(a.provider, a.formOpts...)
		}
		a.signup = nil
		a.session = Session{Phase: PhaseShowLogin}
	}
	snap := a.session
	a.mu.Unlock()

	a.opts.logger.Info("session changed", "phase", snap.Phase.String(), "user", snap.UserEmail)
	a.opts.metrics.observePhase(snap.Phase)
	a.listeners.notify(snap)
}

// GoToSignup switches from the login form to the signup form
func (a *App) GoToSignup() error {
	return a.navigate(PhaseShowLogin, PhaseShowSignup)
}

// GoToLogin switches from the signup form back to the login form
func (a *App) GoToLogin() error {
	return a.navigate(PhaseShowSignup, PhaseShowLogin)
}

func (a *App) navigate(from, to Phase) error {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	a.mu.Lock()
	if a.session.Phase != from {
		current := a.session.Phase
		a.mu.Unlock()
		return fmt.Errorf("%w: cannot go to %s from %s", ErrInvalidTransition, to, current)
	}

	a.session = Session{Phase: to}
	switch to {
	case PhaseShowSignup:
		a.login = nil
		a.signup = NewSignUpForm(a.provider, a.formOpts...)
	case PhaseShowLogin:
		a.signup = nil
		a.login = NewLoginForm(a.provider, a.formOpts...)
	}
	snap := a.session
	a.mu.Unlock()

	a.opts.logger.Debug("navigated", "from", from.String(), "to", to.String())
	a.opts.metrics.observePhase(to)
	a.listeners.notify(snap)
	return nil
}

// SignOut asks the provider to end the session. The phase changes when the
// provider reports the user is gone, not here.
func (a *App) SignOut(ctx context.Context) error {
	a.mu.Lock()
	current := a.session.Phase
	a.mu.Unlock()

	if current != PhaseLoggedIn {
		return fmt.Errorf("%w: cannot sign out from %s", ErrInvalidTransition, current)
	}

	if err := a.provider.SignOut(ctx); err != nil {
		a.opts.logger.WarnContext(ctx, "sign out failed", "error", err)
		return err
	}
	return nil
}

// Session returns a snapshot of the current state
func (a *App) Session() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// LoginForm returns the live login form, or nil when it is not shown
func (a *App) LoginForm() *LoginForm {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.login
}

// SignUpForm returns the live signup form, or nil when it is not shown
func (a *App) SignUpForm() *SignUpForm {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signup
}

// OnChange registers fn to receive every new session snapshot, in order and
// one at a time. fn must not navigate or call Start. The returned func removes it.
func (a *App) OnChange(fn func(Session)) func() {
	return a.listeners.add(fn)
}
