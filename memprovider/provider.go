package memprovider

import (
	"context"
	"time"

	"github.com/panyam/authflow"
)

// Provider is an authflow.Provider over a Registry. It holds a single
// session, like a client SDK on one device.
type Provider struct {
	authflow.SessionFeed

	registry       *Registry
	signInOnCreate bool
	latency        time.Duration
}

// Option configures a Provider
type Option func(*Provider)

// WithRegistry shares an existing Registry (e.g. with the reference server)
func WithRegistry(r *Registry) Option {
	return func(p *Provider) {
		p.registry = r
	}
}

// WithSignInOnCreate controls whether CreateAccount also starts a session (default true)
func WithSignInOnCreate(enabled bool) Option {
	return func(p *Provider) {
		p.signInOnCreate = enabled
	}
}

// WithLatency delays every request, to make loading states visible in demos
func WithLatency(d time.Duration) Option {
	return func(p *Provider) {
		p.latency = d
	}
}

// New creates a Provider with an empty registry unless WithRegistry is given
func New(opts ...Option) *Provider {
	p := &Provider{signInOnCreate: true}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = NewRegistry()
	}
	return p
}

// Registry returns the account registry
func (p *Provider) Registry() *Registry {
	return p.registry
}

func (p *Provider) delay(ctx context.Context) error {
	if p.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignIn verifies the credentials and publishes the signed-in user
func (p *Provider) SignIn(ctx context.Context, email, password string) (*authflow.User, error) {
	if err := p.delay(ctx); err != nil {
		return nil, err
	}
	account, err := p.registry.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	user := account.User()
	p.Publish(user)
	return user, nil
}

// CreateAccount registers the account and, unless disabled, signs it in
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (*authflow.User, error) {
	if err := p.delay(ctx); err != nil {
		return nil, err
	}
	account, err := p.registry.Create(ctx, email, password)
	if err != nil {
		return nil, err
	}
	user := account.User()
	if p.signInOnCreate {
		p.Publish(user)
	}
	return user, nil
}

// SignOut publishes the signed-out state
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.delay(ctx); err != nil {
		return err
	}
	p.Publish(nil)
	return nil
}

var _ authflow.Provider = (*Provider)(nil)
