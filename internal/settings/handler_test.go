package settings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebuszqo/FinanceDashboard/internal/api"
	"github.com/sebuszqo/FinanceDashboard/internal/devapi"
	"github.com/sebuszqo/FinanceDashboard/internal/session"
	"github.com/sebuszqo/FinanceDashboard/internal/token"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
	"github.com/sebuszqo/FinanceDashboard/web"
)

type testEnv struct {
	backend   *devapi.Backend
	client    *api.Client
	sess      *session.Session
	mux       *http.ServeMux
	signedOut bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := devapi.New("test-secret")
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	_, err := backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)

	ctx := context.Background()
	tokens := token.NewStore(token.NewMemoryBackend(), "client-1", nil)
	client := api.NewClient(srv.URL, srv.Client(), nil).WithTokens(tokens)
	pair, err := client.Login(ctx, "alice@example.com", "password1")
	require.NoError(t, err)
	tokens.Set(ctx, token.AccessToken, pair.AccessToken)
	tokens.Set(ctx, token.RefreshToken, pair.RefreshToken)
	sess := session.New(tokens, client)
	require.NotNil(t, sess.Reload(ctx))

	renderer, err := view.NewRenderer(web.TemplatesFS, nil)
	require.NoError(t, err)
	env := &testEnv{backend: backend, client: client, sess: sess, mux: http.NewServeMux()}
	NewHandler(
		func(*http.Request) ProfileAPI { return client },
		renderer.Render,
		func(w http.ResponseWriter, r *http.Request) {
			env.signedOut = true
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		},
		nil,
	).RegisterRoutes(env.mux)
	return env
}

func (e *testEnv) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = req.WithContext(session.NewContext(req.Context(), e.sess))
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func TestSettings_ShowsProfile(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/settings", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="alice@example.com"`)
	assert.Contains(t, w.Body.String(), "USER")
}

func TestUpdateProfile_ReplacesSessionUser(t *testing.T) {
	env := newTestEnv(t)
	before := env.sess.State().User

	w := env.do(http.MethodPost, "/settings/profile", url.Values{
		"username":   {"alice2"},
		"email":      {"alice2@example.com"},
		"avatar_url": {"https://example.com/a.png"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Profile saved.")

	after := env.sess.State().User
	require.NotNil(t, after)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "alice2", after.Username)
	assert.Equal(t, "alice2@example.com", after.Email)
	assert.Equal(t, "https://example.com/a.png", after.AvatarURL)
	assert.Equal(t, before.Roles, after.Roles)
}

func TestUpdateProfile_ValidationKeepsSubmittedValues(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/settings/profile", url.Values{
		"username":   {"al"},
		"email":      {"alice@example.com"},
		"avatar_url": {"ftp://example.com/a.png"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, ErrInvalidAvatarURL.Error())
	assert.Contains(t, body, `value="al"`)
	assert.Equal(t, "alice", env.sess.State().User.Username)
}

func TestUpdateProfile_RejectedTokenSignsOut(t *testing.T) {
	env := newTestEnv(t)
	env.backend.RevokeAccessTokens()
	// Without a refresh token the 401 stands.
	env.sess.Tokens().Remove(context.Background(), token.RefreshToken)

	w := env.do(http.MethodPost, "/settings/profile", url.Values{"username": {"alice"}, "email": {"alice@example.com"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.True(t, env.signedOut)
}

func TestChangePassword(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantText   string
	}{
		{
			name:       "success",
			form:       url.Values{"current_password": {"password1"}, "new_password": {"password2"}, "confirm_password": {"password2"}},
			wantStatus: http.StatusOK,
			wantText:   "Password changed.",
		},
		{
			name:       "mismatch",
			form:       url.Values{"current_password": {"password1"}, "new_password": {"password2"}, "confirm_password": {"password3"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantText:   "passwords do not match",
		},
		{
			name:       "unchanged",
			form:       url.Values{"current_password": {"password1"}, "new_password": {"password1"}, "confirm_password": {"password1"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantText:   "new password must differ from the current one",
		},
		{
			name:       "wrong current password",
			form:       url.Values{"current_password": {"password9"}, "new_password": {"password2"}, "confirm_password": {"password2"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantText:   "invalid old password",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodPost, "/settings/password", tt.form)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantText)
		})
	}
}
