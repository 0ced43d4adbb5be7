package authflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillLogin(f *LoginForm, email, password string) {
	f.UpdateField(FieldEmail, email)
	f.UpdateField(FieldPassword, password)
}

func TestLoginForm_InitialState(t *testing.T) {
	f := NewLoginForm(newFakeProvider())

	st := f.State()
	assert.Equal(t, map[string]string{FieldEmail: "", FieldPassword: ""}, st.Fields)
	assert.Empty(t, st.Error)
	assert.False(t, st.Submitting)
}

func TestLoginForm_ValidationFailuresSkipProvider(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		want     string
	}{
		{"empty email", "", "secret", MsgEmailRequired},
		{"invalid email", "a.b@c.com", "secret", MsgInvalidEmail},
		{"empty password", "a@b.com", "", MsgPasswordRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			f := NewLoginForm(p)
			fillLogin(f, tt.email, tt.password)

			sub := f.Submit(context.Background())

			assert.Nil(t, sub)
			st := f.State()
			assert.Equal(t, tt.want, st.Error)
			assert.False(t, st.Submitting)
			assert.Equal(t, tt.email, st.Field(FieldEmail), "fields are kept")
			assert.Empty(t, p.Calls())
		})
	}
}

func TestLoginForm_SignInSuccess(t *testing.T) {
	p := newFakeProvider()
	f := NewLoginForm(p)
	fillLogin(f, "a@b.com", "x")

	sub := f.Submit(context.Background())
	require.NotNil(t, sub)
	require.NoError(t, sub.Wait())

	st := f.State()
	assert.Equal(t, "", st.Field(FieldEmail))
	assert.Equal(t, "", st.Field(FieldPassword))
	assert.Empty(t, st.Error)
	assert.False(t, st.Submitting)
	assert.Equal(t, []string{"SignIn"}, p.Ops())
	assert.Equal(t, []Stage{StageIdle, StageSigningIn, StageSucceeded}, sub.Steps())
}

func TestLoginForm_FallsBackToCreateAccount(t *testing.T) {
	p := newFakeProvider()
	p.signInErr = NewProviderError("user-not-found", "no such user")
	f := NewLoginForm(p)
	fillLogin(f, "a@b.com", "x")

	sub := f.Submit(context.Background())
	require.NotNil(t, sub)
	require.NoError(t, sub.Wait())

	st := f.State()
	assert.Equal(t, map[string]string{FieldEmail: "", FieldPassword: ""}, st.Fields)
	assert.Empty(t, st.Error)
	assert.False(t, st.Submitting)
	assert.Equal(t, []providerCall{
		{Op: "SignIn", Email: "a@b.com", Password: "x"},
		{Op: "CreateAccount", Email: "a@b.com", Password: "x"},
	}, p.Calls())
	assert.Equal(t, []Stage{StageIdle, StageSigningIn, StageCreatingAccount, StageSucceeded}, sub.Steps())
}

func TestLoginForm_BothAttemptsFail(t *testing.T) {
	p := newFakeProvider()
	p.signInErr = &ProviderError{Message: "weak"}
	p.createErr = &ProviderError{Message: "weak"}
	f := NewLoginForm(p)
	fillLogin(f, "a@b.com", "x")

	sub := f.Submit(context.Background())
	require.NotNil(t, sub)
	err := sub.Wait()
	require.Error(t, err)

	st := f.State()
	assert.Contains(t, st.Error, AuthenticationFailedPrefix)
	assert.Contains(t, st.Error, "weak")
	assert.Equal(t, "Authentication Failed.\nweak", st.Error)
	assert.Equal(t, map[string]string{FieldEmail: "a@b.com", FieldPassword: "x"}, st.Fields)
	assert.False(t, st.Submitting)
	assert.Equal(t, StageFailed, sub.Stage())
	assert.Equal(t, []string{"SignIn", "CreateAccount"}, p.Ops())
}

func TestLoginForm_FailureWithoutDetail(t *testing.T) {
	p := newFakeProvider()
	p.signInErr = errors.New("nope")
	p.createErr = &ProviderError{}
	f := NewLoginForm(p)
	fillLogin(f, "a@b.com", "x")

	require.Error(t, f.Submit(context.Background()).Wait())
	assert.Equal(t, AuthenticationFailedPrefix, f.State().Error)
}

func TestLoginForm_RetryAfterFailure(t *testing.T) {
	p := newFakeProvider()
	p.signInErr = errors.New("bad password")
	p.createErr = NewProviderError("email-already-in-use", "in use")
	f := NewLoginForm(p)
	fillLogin(f, "a@b.com", "wrong")

	require.Error(t, f.Submit(context.Background()).Wait())
	require.NotEmpty(t, f.State().Error)

	// typing does not clear the error
	f.UpdateField(FieldPassword, "right")
	assert.NotEmpty(t, f.State().Error)

	p.mu.Lock()
	p.signInErr = nil
	p.mu.Unlock()

	require.NoError(t, f.Submit(context.Background()).Wait())
	assert.Empty(t, f.State().Error)
	assert.Equal(t, "right", p.Calls()[2].Password)
}

func TestLoginForm_DoubleSubmitIssuesOneCall(t *testing.T) {
	p := newFakeProvider()
	p.gate = make(chan struct{})
	f := NewLoginForm(p)
	fillLogin(f, "a@b.com", "x")

	first := f.Submit(context.Background())
	second := f.Submit(context.Background())

	require.NotNil(t, first)
	assert.Nil(t, second)
	assert.True(t, f.State().Submitting)

	close(p.gate)
	require.NoError(t, first.Wait())

	assert.Equal(t, []string{"SignIn"}, p.Ops())
	assert.False(t, f.State().Submitting)
}

func TestLoginForm_ConcurrentSubmits(t *testing.T) {
	p := newFakeProvider()
	p.gate = make(chan struct{})
	f := NewLoginForm(p)
	fillLogin(f, "a@b.com", "x")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		subs []*Submission
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sub := f.Submit(context.Background()); sub != nil {
				mu.Lock()
				subs = append(subs, sub)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(p.gate)

	require.Len(t, subs, 1)
	require.NoError(t, subs[0].Wait())
	assert.Len(t, p.Calls(), 1)
}

func TestLoginForm_SubmissionOutlivesCancelledContext(t *testing.T) {
	p := newFakeProvider()
	p.gate = make(chan struct{})
	f := NewLoginForm(p)
	fillLogin(f, "a@b.com", "x")

	ctx, cancel := context.WithCancel(context.Background())
	sub := f.Submit(ctx)
	require.NotNil(t, sub)
	cancel()
	close(p.gate)

	require.NoError(t, sub.Wait())
	assert.Equal(t, StageSucceeded, sub.Stage())
}

func TestLoginForm_OnChange(t *testing.T) {
	p := newFakeProvider()
	f := NewLoginForm(p)

	var (
		mu     sync.Mutex
		states []FormState
	)
	cancel := f.OnChange(func(s FormState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	fillLogin(f, "a@b.com", "x")
	require.NoError(t, f.Submit(context.Background()).Wait())
	cancel()
	f.UpdateField(FieldEmail, "ignored@b.com")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, states, 4)
	assert.Equal(t, "a@b.com", states[0].Field(FieldEmail))
	assert.True(t, states[2].Submitting)
	assert.False(t, states[3].Submitting)
	assert.Equal(t, "", states[3].Field(FieldEmail))
}

func TestLoginForm_StateIsSnapshot(t *testing.T) {
	f := NewLoginForm(newFakeProvider())
	st := f.State()
	st.Fields[FieldEmail] = "mutated@b.com"

	assert.Equal(t, "", f.State().Field(FieldEmail))
}

func TestLoginForm_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p := newFakeProvider()
	p.signInErr = errors.New("nope")
	f := NewLoginForm(p, WithMetrics(m))

	f.Submit(context.Background())
	fillLogin(f, "a@b.com", "x")
	require.NoError(t, f.Submit(context.Background()).Wait())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("login", OutcomeInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("login", OutcomeCreated)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.submissions.WithLabelValues("login", OutcomeSignedIn)))
}

// A listener that is slow to handle one change must still end on the
// form's final state.
func TestLoginForm_SlowListenerSeesChangesInOrder(t *testing.T) {
	p := newFakeProvider()
	f := NewLoginForm(p)
	fillLogin(f, "a@b.com", "x")

	var (
		mu   sync.Mutex
		last FormState
		once sync.Once
	)
	blocked := make(chan struct{})
	release := make(chan struct{})
	f.OnChange(func(s FormState) {
		if s.Field("note") == "typed" {
			once.Do(func() {
				close(blocked)
				<-release
			})
		}
		mu.Lock()
		last = s
		mu.Unlock()
	})

	typed := make(chan struct{})
	go func() {
		f.UpdateField("note", "typed")
		close(typed)
	}()
	<-blocked

	submitted := make(chan *Submission)
	go func() { submitted <- f.Submit(context.Background()) }()
	time.Sleep(50 * time.Millisecond)
	close(release)

	<-typed
	sub := <-submitted
	require.NotNil(t, sub)
	require.NoError(t, sub.Wait())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, f.State(), last)
	assert.False(t, last.Submitting)
	assert.Equal(t, "", last.Field(FieldEmail))
}
