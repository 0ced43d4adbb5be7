// Package authflow implements the client side of an email/password sign-in
// flow: an app-level session state machine and the two credential forms that
// feed it.
//
// # Architecture
//
// Provider: the remote identity service. It reports session changes through
// Subscribe and performs SignIn, CreateAccount and SignOut. The client package
// talks to an HTTP identity server; the memprovider package keeps accounts in
// memory.
//
// App: the session state machine. It starts in PhaseLoading and follows the
// provider: a user means PhaseLoggedIn, no user means PhaseShowLogin. While
// signed out the user can switch between the login and signup forms.
//
// LoginForm and SignUpForm: each owns a FormState (fields, error, submitting
// flag), validates locally before contacting the provider, and ignores a
// second Submit while one is in flight. LoginForm falls back to CreateAccount
// when SignIn is rejected.
//
// # Basic Usage
//
//	provider := memprovider.New()
//	app := authflow.NewApp(provider, authflow.WithLogger(logger))
//	app.OnChange(func(s authflow.Session) {
//	    render(s)
//	})
//	app.Start()
//	defer app.Close()
//
//	form := app.LoginForm()
//	form.UpdateField(authflow.FieldEmail, "user@example.com")
//	form.UpdateField(authflow.FieldPassword, "secret")
//	if sub := form.Submit(ctx); sub != nil {
//	    sub.Wait()
//	}
//
// # Errors
//
// Local validation failures and provider failures both end up in
// FormState.Error as a user-facing message. Provider failures are prefixed
// with AuthenticationFailedPrefix or AccountCreationFailedPrefix followed by
// the provider's detail (see ErrorDetail). Neither is ever returned from
// Submit.
//
// # Testing
//
// Controllers take the Provider at construction, so tests can substitute a
// fake. Submission.Wait blocks until the provider has settled a submission.
package authflow
