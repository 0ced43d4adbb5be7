package authflow

import (
	"context"
)

var signupFields = []string{FieldEmail, FieldPassword, FieldConfirmPassword}

// SignUpForm collects an email, a password and its confirmation and creates
// the account. A failed creation is never retried as a sign-in.
type SignUpForm struct {
	*form
}

// NewSignUpForm creates an empty signup form bound to p
func NewSignUpForm(p Provider, opts ...Option) *SignUpForm {
	return &SignUpForm{form: newForm("signup", signupFields, p, opts)}
}

// Submit validates the form and, if it passes, starts account creation.
// It returns nil when nothing was sent.
func (f *SignUpForm) Submit(ctx context.Context) *Submission {
	fields, ok := f.begin(func(s FormState) *ValidationError {
		return ValidateSignup(s.Field(FieldEmail), s.Field(FieldPassword), s.Field(FieldConfirmPassword))
	})
	if !ok {
		return nil
	}

	sub := newSubmission()
	go f.run(context.WithoutCancel(ctx), sub, fields[FieldEmail], fields[FieldPassword])
	return sub
}

func (f *SignUpForm) run(ctx context.Context, sub *Submission, email, password string) {
	sub.advance(StageCreatingAccount)
	err := f.call(ctx, "CreateAccount", email, func(ctx context.Context) error {
		_, err := f.provider.CreateAccount(ctx, email, password)
		return err
	})
	if err != nil {
		f.fail(AccountCreationFailedPrefix, err)
		sub.finish(StageFailed, err)
		return
	}

	f.succeed(OutcomeCreated)
	sub.finish(StageSucceeded, nil)
}
