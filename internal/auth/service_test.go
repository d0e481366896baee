package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebuszqo/FinanceDashboard/internal/api"
	"github.com/sebuszqo/FinanceDashboard/internal/devapi"
	"github.com/sebuszqo/FinanceDashboard/internal/session"
	"github.com/sebuszqo/FinanceDashboard/internal/token"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

type authEnv struct {
	backend *devapi.Backend
	client  *api.Client
	tokens  token.Store
	sess    *session.Session
	service Service
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	backend := devapi.New("test-secret")
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	tokens := token.NewStore(token.NewMemoryBackend(), "client-1", nil)
	client := api.NewClient(srv.URL, srv.Client(), nil).WithTokens(tokens)
	return &authEnv{
		backend: backend,
		client:  client,
		tokens:  tokens,
		sess:    session.New(tokens, client),
		service: NewAuthService(client, nil),
	}
}

func TestLogin_StoresTokensAndSetsUser(t *testing.T) {
	env := newAuthEnv(t)
	_, err := env.backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)
	ctx := context.Background()

	p, err := env.service.Login(ctx, env.sess, "alice@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	_, ok := env.tokens.Get(ctx, token.AccessToken)
	assert.True(t, ok)
	_, ok = env.tokens.Get(ctx, token.RefreshToken)
	assert.True(t, ok)

	state := env.sess.State()
	assert.False(t, state.Loading)
	require.NotNil(t, state.User)
	assert.Equal(t, p.ID, state.User.ID)
}

func TestLogin_RoundTripSurvivesReload(t *testing.T) {
	env := newAuthEnv(t)
	_, err := env.backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)
	ctx := context.Background()

	p, err := env.service.Login(ctx, env.sess, "alice@example.com", "password1")
	require.NoError(t, err)

	// A new session over the same tokens behaves like a page reload.
	reloaded := session.New(env.tokens, env.client)
	reloaded.Hydrate(ctx)
	state := reloaded.State()
	require.NotNil(t, state.User)
	assert.Equal(t, p.ID, state.User.ID)
	assert.Equal(t, int32(1), env.backend.Calls.Login.Load())
}

func TestLogin_EmptyInputMakesNoCall(t *testing.T) {
	env := newAuthEnv(t)

	_, err := env.service.Login(context.Background(), env.sess, "  ", "")
	var input *InputError
	require.True(t, errors.As(err, &input))
	assert.Len(t, input.Errs, 2)
	assert.ErrorIs(t, err, user.ErrEmailRequired)
	assert.ErrorIs(t, err, user.ErrPasswordRequired)
	assert.Equal(t, int32(0), env.backend.Calls.Login.Load())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newAuthEnv(t)
	_, err := env.backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = env.service.Login(ctx, env.sess, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, ok := env.tokens.Get(ctx, token.AccessToken)
	assert.False(t, ok)
	assert.Nil(t, env.sess.State().User)
}

func TestRegister(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	err := env.service.Register(ctx, Registration{
		Username: "bob", Email: "bob@example.com", Password: "password1", Confirm: "password1",
	})
	require.NoError(t, err)

	_, err = env.service.Login(ctx, env.sess, "bob@example.com", "password1")
	require.NoError(t, err)
	p := env.sess.State().User
	require.NotNil(t, p)
	assert.Equal(t, user.NewRoleSet(user.RoleUser), p.Roles)
}

func TestRegister_ValidationMakesNoCall(t *testing.T) {
	tests := []struct {
		name string
		reg  Registration
		want []error
	}{
		{
			name: "everything missing",
			reg:  Registration{},
			want: []error{user.ErrUsernameRequired, user.ErrEmailRequired, user.ErrPasswordRequired},
		},
		{
			name: "mismatched confirmation",
			reg:  Registration{Username: "bob", Email: "bob@example.com", Password: "password1", Confirm: "password2"},
			want: []error{user.ErrPasswordMismatch},
		},
		{
			name: "malformed email",
			reg:  Registration{Username: "bob", Email: "not-an-email", Password: "password1", Confirm: "password1"},
			want: []error{user.ErrInvalidEmail},
		},
		{
			name: "admin role",
			reg:  Registration{Username: "bob", Email: "bob@example.com", Password: "password1", Confirm: "password1", Role: "ADMIN"},
			want: []error{ErrInvalidRole},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newAuthEnv(t)
			err := env.service.Register(context.Background(), tt.reg)
			var input *InputError
			require.True(t, errors.As(err, &input))
			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}
			assert.Equal(t, int32(0), env.backend.Calls.Register.Load())
		})
	}
}

func TestRegister_DuplicateEmailCarriesBackendMessage(t *testing.T) {
	env := newAuthEnv(t)
	_, err := env.backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)

	err = env.service.Register(context.Background(), Registration{
		Username: "alice2", Email: "alice@example.com", Password: "password1", Confirm: "password1",
	})
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 409, apiErr.Status)
	assert.NotEmpty(t, apiErr.Message)
}

func TestPasswordReset(t *testing.T) {
	env := newAuthEnv(t)
	_, err := env.backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.service.RequestPasswordReset(ctx, "alice@example.com"))
	code := env.backend.LastOTP("alice@example.com")
	require.Len(t, code, 6)

	err = env.service.ResetPassword(ctx, "alice@example.com", "12", "new-password", "new-password")
	assert.ErrorIs(t, err, ErrInvalidVerification)

	require.NoError(t, env.service.ResetPassword(ctx, "alice@example.com", code, "new-password", "new-password"))

	_, err = env.service.Login(ctx, env.sess, "alice@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.service.Login(ctx, env.sess, "alice@example.com", "new-password")
	assert.NoError(t, err)
}

func TestLogout_IsIdempotent(t *testing.T) {
	env := newAuthEnv(t)
	_, err := env.backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)
	ctx := context.Background()
	_, err = env.service.Login(ctx, env.sess, "alice@example.com", "password1")
	require.NoError(t, err)

	env.service.Logout(ctx, env.sess)
	env.service.Logout(ctx, env.sess)

	assert.Nil(t, env.sess.State().User)
	_, ok := env.tokens.Get(ctx, token.AccessToken)
	assert.False(t, ok)
	_, ok = env.tokens.Get(ctx, token.RefreshToken)
	assert.False(t, ok)
}
