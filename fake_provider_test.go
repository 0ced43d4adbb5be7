package authflow

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type providerCall struct {
	Op       string
	Email    string
	Password string
}

// fakeProvider is a scriptable in-memory Provider for controller tests
type fakeProvider struct {
	SessionFeed

	mu         sync.Mutex
	calls      []providerCall
	signInErr  error
	createErr  error
	signOutErr error

	// when set, SignIn and CreateAccount block until it is closed
	gate chan struct{}

	// publish the user on successful SignIn / CreateAccount, nil on SignOut
	publish bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{}
}

func (p *fakeProvider) record(op, email, password string) {
	p.mu.Lock()
	p.calls = append(p.calls, providerCall{Op: op, Email: email, Password: password})
	p.mu.Unlock()
}

func (p *fakeProvider) wait() {
	if p.gate != nil {
		<-p.gate
	}
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (*User, error) {
	p.record("SignIn", email, password)
	p.wait()
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	u := &User{ID: "id-" + email, Email: email}
	if p.publish {
		p.Publish(u)
	}
	return u, nil
}

func (p *fakeProvider) CreateAccount(ctx context.Context, email, password string) (*User, error) {
	p.record("CreateAccount", email, password)
	p.wait()
	if p.createErr != nil {
		return nil, p.createErr
	}
	u := &User{ID: "id-" + email, Email: email}
	if p.publish {
		p.Publish(u)
	}
	return u, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.record("SignOut", "", "")
	if p.signOutErr != nil {
		return p.signOutErr
	}
	if p.publish {
		p.Publish(nil)
	}
	return nil
}

func (p *fakeProvider) Calls() []providerCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]providerCall, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *fakeProvider) Ops() []string {
	var ops []string
	for _, c := range p.Calls() {
		ops = append(ops, c.Op)
	}
	return ops
}
