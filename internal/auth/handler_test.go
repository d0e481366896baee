package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebuszqo/FinanceDashboard/internal/api"
	"github.com/sebuszqo/FinanceDashboard/internal/session"
	"github.com/sebuszqo/FinanceDashboard/internal/token"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
	"github.com/sebuszqo/FinanceDashboard/web"
)

// unreachable fails every call the way a dropped connection does.
type unreachable struct{}

func (unreachable) Login(context.Context, string, string) (api.TokenPair, error) {
	return api.TokenPair{}, errors.New("dial tcp: connection refused")
}
func (unreachable) Register(context.Context, api.RegisterRequest) error {
	return errors.New("dial tcp: connection refused")
}
func (unreachable) SendOTP(context.Context, string) error {
	return errors.New("dial tcp: connection refused")
}
func (unreachable) VerifyOTP(context.Context, string, string, string) error {
	return errors.New("dial tcp: connection refused")
}

type handlerEnv struct {
	*authEnv
	mux *http.ServeMux
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	renderer, err := view.NewRenderer(web.TemplatesFS, nil)
	require.NoError(t, err)

	env := &handlerEnv{authEnv: newAuthEnv(t), mux: http.NewServeMux()}
	NewHandler(env.service, renderer.Render, nil).RegisterRoutes(env.mux)
	return env
}

func (e *handlerEnv) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.serve(req)
}

func (e *handlerEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	req = req.WithContext(session.NewContext(req.Context(), e.sess))
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func TestLoginPage_RendersForAnyone(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.serve(httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/login"`)

	env.sess.SetUser(&user.Profile{ID: "u-1", Username: "alice", Roles: user.NewRoleSet(user.RoleUser)})
	w = env.serve(httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleLogin_RedirectsByRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []user.Role
		want  string
	}{
		{"user goes home", []user.Role{user.RoleUser}, "/home"},
		{"admin goes to the admin panel", []user.Role{user.RoleAdmin}, "/admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newHandlerEnv(t)
			_, err := env.backend.AddUser("alice", "alice@example.com", "password1", tt.roles...)
			require.NoError(t, err)

			w := env.post("/login", url.Values{"email": {"alice@example.com"}, "password": {"password1"}})
			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, tt.want, w.Header().Get("Location"))
			assert.NotNil(t, env.sess.State().User)
		})
	}
}

func TestHandleLogin_InvalidCredentialsKeepForm(t *testing.T) {
	env := newHandlerEnv(t)
	_, err := env.backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)

	w := env.post("/login", url.Values{"email": {"alice@example.com"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Invalid email or password.")
	assert.Contains(t, body, `value="alice@example.com"`)
	assert.Nil(t, env.sess.State().User)
}

func TestHandleLogin_MissingFieldsMakeNoCall(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.post("/login", url.Values{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), user.ErrEmailRequired.Error())
	assert.Equal(t, int32(0), env.backend.Calls.Login.Load())
}

func TestHandleLogin_UnreachableBackendShowsFallback(t *testing.T) {
	env := newHandlerEnv(t)
	renderer, err := view.NewRenderer(web.TemplatesFS, nil)
	require.NoError(t, err)
	mux := http.NewServeMux()
	NewHandler(NewAuthService(unreachable{}, nil), renderer.Render, nil).RegisterRoutes(mux)
	env.mux = mux

	w := env.post("/login", url.Values{"email": {"alice@example.com"}, "password": {"password1"}})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Login failed. Please try again.")
}

func TestHandleRegister(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.post("/register", url.Values{
		"username":         {"bob"},
		"email":            {"bob@example.com"},
		"password":         {"password1"},
		"confirm_password": {"password1"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Account created.")
	assert.Contains(t, w.Body.String(), `action="/login"`)
	assert.Equal(t, int32(1), env.backend.Calls.Register.Load())
}

func TestHandleRegister_ValidationListsEveryProblem(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.post("/register", url.Values{
		"username":         {"bob"},
		"email":            {"bob@"},
		"password":         {"short"},
		"confirm_password": {"short"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, user.ErrInvalidEmail.Error())
	assert.Contains(t, body, user.ErrPasswordLength.Error())
	assert.Contains(t, body, `value="bob"`)
	assert.Equal(t, int32(0), env.backend.Calls.Register.Load())
}

func TestHandleForgotPassword_TwoSteps(t *testing.T) {
	env := newHandlerEnv(t)
	_, err := env.backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)

	w := env.post("/forgot-password", url.Values{"step": {"request"}, "email": {"alice@example.com"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="otp"`)

	code := env.backend.LastOTP("alice@example.com")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	w = env.post("/forgot-password", url.Values{
		"step":             {"confirm"},
		"email":            {"alice@example.com"},
		"otp":              {wrong},
		"new_password":     {"new-password"},
		"confirm_password": {"new-password"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "invalid verification code")

	w = env.post("/forgot-password", url.Values{
		"step":             {"confirm"},
		"email":            {"alice@example.com"},
		"otp":              {code},
		"new_password":     {"new-password"},
		"confirm_password": {"new-password"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Password changed.")
}

func TestHandleLogout_ClearsSessionAndRedirects(t *testing.T) {
	env := newHandlerEnv(t)
	_, err := env.backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)
	ctx := context.Background()
	_, err = env.service.Login(ctx, env.sess, "alice@example.com", "password1")
	require.NoError(t, err)

	w := env.post("/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
	assert.Nil(t, env.sess.State().User)
	_, ok := env.tokens.Get(ctx, token.AccessToken)
	assert.False(t, ok)

	// Logging out again is a no-op.
	w = env.post("/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, w.Code)
}
