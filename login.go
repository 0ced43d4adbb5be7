package authflow

import (
	"context"
)

var loginFields = []string{FieldEmail, FieldPassword}

// LoginForm collects an email and password and signs the user in. When the
// provider rejects the sign-in it tries to create the account with the same
// credentials before reporting a failure, so one button serves both new and
// returning users.
type LoginForm struct {
	*form
}

// NewLoginForm creates an empty login form bound to p
func NewLoginForm(p Provider, opts ...Option) *LoginForm {
	return &LoginForm{form: newForm("login", loginFields, p, opts)}
}

// Submit validates the form and, if it passes, starts the sign-in. It returns
// nil when nothing was sent: either validation failed (see State().Error) or
// another submission is still in flight.
//
// The returned Submission runs to completion even if ctx is cancelled.
func (f *LoginForm) Submit(ctx context.Context) *Submission {
	fields, ok := f.begin(func(s FormState) *ValidationError {
		return ValidateLogin(s.Field(FieldEmail), s.Field(FieldPassword))
	})
	if !ok {
		return nil
	}

	sub := newSubmission()
	go f.run(context.WithoutCancel(ctx), sub, fields[FieldEmail], fields[FieldPassword])
	return sub
}

func (f *LoginForm) run(ctx context.Context, sub *Submission, email, password string) {
	sub.advance(StageSigningIn)
	err := f.call(ctx, "SignIn", email, func(ctx context.Context) error {
		_, err := f.provider.SignIn(ctx, email, password)
		return err
	})
	if err == nil {
		f.succeed(OutcomeSignedIn)
		sub.finish(StageSucceeded, nil)
		return
	}

	f.opts.logger.DebugContext(ctx, "sign-in rejected, trying account creation", "email", email)
	sub.advance(StageCreatingAccount)
	err = f.call(ctx, "CreateAccount", email, func(ctx context.Context) error {
		_, err := f.provider.CreateAccount(ctx, email, password)
		return err
	})
	if err != nil {
		f.fail(AuthenticationFailedPrefix, err)
		sub.finish(StageFailed, err)
		return
	}

	f.succeed(OutcomeCreated)
	sub.finish(StageSucceeded, nil)
}
