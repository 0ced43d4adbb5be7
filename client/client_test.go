package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/panyam/authflow"
	"github.com/panyam/authflow/internal/logging"
	"github.com/panyam/authflow/memprovider"
	"github.com/panyam/authflow/server"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

type testEnv struct {
	srv      *httptest.Server
	registry *memprovider.Registry
	client   *AuthClient
	store    *MemoryCredentialStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reg := memprovider.NewRegistry(memprovider.WithHashCost(bcrypt.MinCost))
	idp := server.New(server.Config{JWTSecretKey: "test-secret", JWTIssuer: "test"}, reg,
		server.WithLogger(logging.Discard()))
	srv := httptest.NewServer(idp)
	t.Cleanup(srv.Close)

	store := NewMemoryCredentialStore()
	c := NewAuthClient(Config{ServerURL: srv.URL + "/some/path"},
		WithCredentialStore(store),
		WithTransport(srv.Client().Transport),
		WithLogger(logging.Discard()))
	return &testEnv{srv: srv, registry: reg, client: c, store: store}
}

func TestAuthClient_NormalizesServerURL(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, env.srv.URL, env.client.ServerURL())
}

func TestAuthClient_SignInPublishesUser(t *testing.T) {
	env := newTestEnv(t)
	account, err := env.registry.Create(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)

	var seen []*authflow.User
	unsub := env.client.Subscribe(func(u *authflow.User) { seen = append(seen, u) })
	defer unsub()

	user, err := env.client.SignIn(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, &authflow.User{ID: account.ID, Email: "a@b.com"}, user)

	require.Len(t, seen, 2)
	assert.Nil(t, seen[0])
	assert.Equal(t, account.ID, seen[1].ID)

	cred, err := env.store.GetCredential(env.client.ServerURL())
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "a@b.com", cred.UserEmail)
	assert.False(t, cred.IsExpired())

	token, ok := env.client.AccessToken()
	assert.True(t, ok)
	assert.Equal(t, cred.AccessToken, token)
}

func TestAuthClient_SignInFailureIsProviderError(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.SignIn(context.Background(), "missing@b.com", "secret1")
	require.Error(t, err)

	var perr *authflow.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "invalid_grant", perr.Code)
	assert.Equal(t,
		"There is no user record corresponding to this identifier. The user may have been deleted.",
		authflow.ErrorDetail(err))
	assert.Nil(t, env.client.Current())
}

func TestAuthClient_CreateAccount(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.client.CreateAccount(context.Background(), "new@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "new@b.com", user.Email)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, user.ID, env.client.Current().ID)

	_, err = env.client.CreateAccount(context.Background(), "new@b.com", "secret1")
	var perr *authflow.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, memprovider.CodeEmailInUse, perr.Code)
	assert.Equal(t, "The email address is already in use by another account.", authflow.ErrorDetail(err))
}

func TestAuthClient_SignOut(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.client.CreateAccount(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, env.client.SignOut(context.Background()))
	assert.Nil(t, env.client.Current())
	_, ok := env.client.AccessToken()
	assert.False(t, ok)
}

func TestAuthClient_FetchProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.FetchProfile(ctx)
	var perr *authflow.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "unauthorized", perr.Code)

	created, err := env.client.CreateAccount(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	profile, err := env.client.FetchProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, created, profile)
}

func TestAuthClient_ResumesStoredSession(t *testing.T) {
	store := NewMemoryCredentialStore()
	require.NoError(t, store.SetCredential("https://id.example.com", &ServerCredential{
		AccessToken: "tok",
		UserID:      "u1",
		UserEmail:   "a@b.com",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	c := NewAuthClient(Config{ServerURL: "https://id.example.com"}, WithCredentialStore(store))
	require.NotNil(t, c.Current())
	assert.Equal(t, "a@b.com", c.Current().Email)

	require.NoError(t, store.SetCredential("https://id.example.com", &ServerCredential{
		AccessToken: "tok",
		UserID:      "u1",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}))
	c = NewAuthClient(Config{ServerURL: "https://id.example.com"}, WithCredentialStore(store))
	assert.Nil(t, c.Current())
}

func TestAuthClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewAuthClient(Config{ServerURL: url, Timeout: time.Second}, WithLogger(logging.Discard()))

	_, err := c.CreateAccount(context.Background(), "a@b.com", "secret1")
	var perr *authflow.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeNetworkRequestFailed, perr.Code)

	_, err = c.SignIn(context.Background(), "a@b.com", "secret1")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeNetworkRequestFailed, perr.Code)
}

func TestAuthClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewAuthClient(Config{ServerURL: srv.URL}, WithTransport(srv.Client().Transport))
	_, err := c.CreateAccount(context.Background(), "a@b.com", "secret1")
	var perr *authflow.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "http-502", perr.Code)
	assert.Equal(t, "Server returned HTTP 502", perr.Message)
}

// The login form's fallback drives both endpoints of a real server.
func TestAuthClient_WithLoginForm(t *testing.T) {
	env := newTestEnv(t)
	app := authflow.NewApp(env.client, authflow.WithLogger(logging.Discard()))
	app.Start()
	defer app.Close()

	form := app.LoginForm()
	require.NotNil(t, form)
	form.UpdateField(authflow.FieldEmail, "first@b.com")
	form.UpdateField(authflow.FieldPassword, "secret1")
	sub := form.Submit(context.Background())
	require.NoError(t, sub.Wait())

	assert.Equal(t, []authflow.Stage{authflow.StageIdle, authflow.StageSigningIn,
		authflow.StageCreatingAccount, authflow.StageSucceeded}, sub.Steps())
	assert.Equal(t, "Hello first@b.com", app.Session().Greeting())

	require.NoError(t, app.SignOut(context.Background()))
	assert.Equal(t, authflow.PhaseShowLogin, app.Session().Phase)
}
