package authflow

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Failure prefixes shown ahead of the provider detail
const (
	AuthenticationFailedPrefix  = "Authentication Failed."
	AccountCreationFailedPrefix = "Account Creation Failed."
)

// FormState is a snapshot of a credential form.
type FormState struct {
	Fields     map[string]string
	Error      string
	Submitting bool
}

// Field returns the value of a field, or "" if it was never set
func (s FormState) Field(name string) string {
	return s.Fields[name]
}

func (s FormState) clone() FormState {
	fields := make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	s.Fields = fields
	return s
}

func emptyFields(names []string) map[string]string {
	fields := make(map[string]string, len(names))
	for _, n := range names {
		fields[n] = ""
	}
	return fields
}

// form holds the state, guard and listeners shared by LoginForm and SignUpForm.
type form struct {
	kind     string
	names    []string
	provider Provider
	opts     options

	// deliverMu is held from a state change until its listeners return, so
	// listeners see snapshots in the order the changes were made
	deliverMu sync.Mutex

	mu        sync.Mutex
	state     FormState
	listeners listenerSet[FormState]
}

func newForm(kind string, names []string, p Provider, opts []Option) *form {
	return &form{
		kind:     kind,
		names:    names,
		provider: p,
		opts:     newOptions(opts),
		state:    FormState{Fields: emptyFields(names)},
	}
}

// State returns a snapshot of the form
func (f *form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.clone()
}

// OnChange registers fn to receive a snapshot after every state change.
// Snapshots arrive in order, one at a time. fn must not call UpdateField or
// Submit on the same form. The returned func removes it.
func (f *form) OnChange(fn func(FormState)) func() {
	return f.listeners.add(fn)
}

// UpdateField sets a field value. It never touches Error.
func (f *form) UpdateField(name, value string) {
	f.mutate(func(s *FormState) {
		s.Fields[name] = value
	})
}

func (f *form) mutate(fn func(*FormState)) FormState {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	fn(&f.state)
	snap := f.state.clone()
	f.mu.Unlock()

	f.listeners.notify(snap)
	return snap
}

// begin applies the submission guard and local validation. It returns the
// field values to submit and true when the provider should be contacted.
func (f *form) begin(validate func(FormState) *ValidationError) (map[string]string, bool) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	if f.state.Submitting {
		f.mu.Unlock()
		f.opts.logger.Debug("submission dropped, another is in flight", "form", f.kind)
		f.opts.metrics.observeSubmission(f.kind, OutcomeDropped)
		return nil, false
	}

	if verr := validate(f.state); verr != nil {
		f.state.Error = verr.Message
		snap := f.state.clone()
		f.mu.Unlock()

		f.opts.logger.Debug("form rejected locally", "form", f.kind, "field", verr.Field, "code", verr.Code)
		f.opts.metrics.observeSubmission(f.kind, OutcomeInvalid)
		f.listeners.notify(snap)
		return nil, false
	}

	f.state.Error = ""
	f.state.Submitting = true
	snap := f.state.clone()
	f.mu.Unlock()

	f.listeners.notify(snap)
	return snap.Fields, true
}

func (f *form) succeed(outcome string) {
	f.mutate(func(s *FormState) {
		s.Fields = emptyFields(f.names)
		s.Error = ""
		s.Submitting = false
	})
	f.opts.metrics.observeSubmission(f.kind, outcome)
}

func (f *form) fail(prefix string, err error) {
	f.mutate(func(s *FormState) {
		s.Error = failureMessage(prefix, err)
		s.Submitting = false
	})
	f.opts.metrics.observeSubmission(f.kind, OutcomeFailed)
}

// call runs one provider request inside a span
func (f *form) call(ctx context.Context, op, email string, fn func(context.Context) error) error {
	ctx, span := f.opts.tracer.Start(ctx, "authflow."+op,
		trace.WithAttributes(attribute.String("authflow.form", f.kind)))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorDetail(err))
		f.opts.logger.InfoContext(ctx, "provider request failed", "form", f.kind, "op", op, "email", email, "error", err)
	}
	return err
}
