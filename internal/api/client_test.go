package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebuszqo/FinanceDashboard/internal/devapi"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	"github.com/sebuszqo/FinanceDashboard/internal/token"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

func newDevClient(t *testing.T) (*devapi.Backend, *Client, token.Store) {
	t.Helper()
	backend := devapi.New("test-secret")
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store := token.NewStore(token.NewMemoryBackend(), "client-1", nil)
	return backend, NewClient(srv.URL, srv.Client(), nil).WithTokens(store), store
}

func loginInto(t *testing.T, c *Client, store token.Store, email, password string) {
	t.Helper()
	ctx := context.Background()
	pair, err := c.Login(ctx, email, password)
	require.NoError(t, err)
	store.Set(ctx, token.AccessToken, pair.AccessToken)
	store.Set(ctx, token.RefreshToken, pair.RefreshToken)
}

func TestLoginAndMe(t *testing.T) {
	backend, c, store := newDevClient(t)
	_, err := backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)

	loginInto(t, c, store, "alice@example.com", "password1")

	p, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.True(t, p.Roles.Has(user.RoleUser))
	assert.False(t, p.IsAdmin())
}

func TestLogin_RejectedCredentialsCarryBackendMessage(t *testing.T) {
	backend, c, _ := newDevClient(t)
	_, err := backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Invalid credentials", Message(err, "Login failed"))
}

func TestMe_WithoutTokenMakesNoCall(t *testing.T) {
	backend, c, _ := newDevClient(t)

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(0), backend.Calls.Me.Load())
}

func TestMe_RefreshesOnceOnUnauthorized(t *testing.T) {
	backend, c, store := newDevClient(t)
	_, err := backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)
	loginInto(t, c, store, "alice@example.com", "password1")
	ctx := context.Background()
	oldAccess, _ := store.Get(ctx, token.AccessToken)
	oldRefresh, _ := store.Get(ctx, token.RefreshToken)

	backend.RevokeAccessTokens()

	p, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, int32(1), backend.Calls.Refresh.Load())
	assert.Equal(t, int32(2), backend.Calls.Me.Load())

	newAccess, _ := store.Get(ctx, token.AccessToken)
	newRefresh, _ := store.Get(ctx, token.RefreshToken)
	assert.NotEqual(t, oldAccess, newAccess)
	assert.NotEqual(t, oldRefresh, newRefresh)
}

func TestMe_FailedRefreshSurfacesUnauthorized(t *testing.T) {
	backend, c, store := newDevClient(t)
	_, err := backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)
	loginInto(t, c, store, "alice@example.com", "password1")
	ctx := context.Background()
	store.Set(ctx, token.RefreshToken, "garbage")

	backend.RevokeAccessTokens()

	_, err = c.Me(ctx)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), backend.Calls.Me.Load())
}

func TestRefresh_ConcurrentCallersShareOneRequest(t *testing.T) {
	var refreshCalls atomic.Int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	store := token.NewStore(token.NewMemoryBackend(), "client-1", nil)
	store.Set(ctx, token.AccessToken, "old-access")
	store.Set(ctx, token.RefreshToken, "refresh-1")
	c := NewClient(srv.URL, srv.Client(), nil).WithTokens(store)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.refresh(ctx)
		}(i)
	}
	<-entered
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), refreshCalls.Load())
	access, _ := store.Get(ctx, token.AccessToken)
	assert.Equal(t, "new-access", access)
	refresh, _ := store.Get(ctx, token.RefreshToken)
	assert.Equal(t, "refresh-1", refresh, "refresh token is kept when the backend does not rotate it")
}

func TestMe_UsesPairRotatedWhileInFlight(t *testing.T) {
	var refreshCalls atomic.Int32
	ctx := context.Background()
	store := token.NewStore(token.NewMemoryBackend(), "client-1", nil)
	store.Set(ctx, token.AccessToken, "old-access")
	store.Set(ctx, token.RefreshToken, "refresh-1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/auth/refresh":
			refreshCalls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"refresh token already used"}`))
		case r.Header.Get("Authorization") == "Bearer old-access":
			// A concurrent caller finishes its refresh before this answer.
			store.Set(ctx, token.AccessToken, "rotated-access")
			store.Set(ctx, token.RefreshToken, "refresh-2")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"token expired"}`))
		case r.Header.Get("Authorization") == "Bearer rotated-access":
			w.Write([]byte(`{"id":"u-1","username":"alice","roles":["USER"]}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client(), nil).WithTokens(store)

	p, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, int32(0), refreshCalls.Load())
	refresh, _ := store.Get(ctx, token.RefreshToken)
	assert.Equal(t, "refresh-2", refresh)
}

func TestDecodeBody_BareAndEnveloped(t *testing.T) {
	responses := map[string]string{
		"/bare":     `{"id":"u-1","username":"alice","email":"a@example.com","role":"ROLE_ADMIN"}`,
		"/envelope": `{"status":"success","data":{"id":"u-1","name":"alice","roles":["user","admin"]}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(responses[r.URL.Path]))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client(), nil)

	for path := range responses {
		t.Run(path, func(t *testing.T) {
			var p user.Profile
			require.NoError(t, c.do(context.Background(), request{method: http.MethodGet, path: path}, &p))
			assert.Equal(t, "u-1", p.ID)
			assert.Equal(t, "alice", p.Username)
			assert.True(t, p.IsAdmin())
		})
	}
}

func TestError_Messages(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"message field", http.StatusConflict, `{"status":"error","message":"email already exists"}`, "email already exists"},
		{"error field", http.StatusBadRequest, `{"error":"bad input"}`, "bad input"},
		{"details", http.StatusBadRequest, `{"message":"Validation errors occurred","errors":["a","b"]}`, "Validation errors occurred: a; b"},
		{"plain text", http.StatusBadGateway, "upstream down", "upstream down"},
		{"html body", http.StatusBadGateway, "<html>oops</html>", "fallback"},
		{"empty body", http.StatusInternalServerError, "", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := error(newError(tt.status, []byte(tt.body)))
			assert.Equal(t, tt.expected, Message(err, "fallback"))
			assert.False(t, IsUnauthorized(err))
		})
	}

	assert.Equal(t, "fallback", Message(errors.New("dial tcp: refused"), "fallback"))
}

func TestRequestID_IsForwarded(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client(), nil)

	require.NoError(t, c.do(WithRequestID(context.Background(), "req-42"), request{method: http.MethodGet, path: "/"}, nil))
	assert.Equal(t, "req-42", got)
}

func TestFinanceCalls(t *testing.T) {
	backend, c, store := newDevClient(t)
	_, err := backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)
	loginInto(t, c, store, "alice@example.com", "password1")
	ctx := context.Background()

	categories, err := c.ListCategories(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, categories)

	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	created, err := c.CreateTransaction(ctx, domain.Transaction{
		Amount: 12.5, Type: domain.TypeExpense, Date: date, CategoryID: categories[1].ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, categories[1].Name, created.CategoryName)

	list, err := c.ListTransactions(ctx, domain.TransactionFilter{Type: domain.TypeExpense})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	summary, err := c.GetSummary(ctx, date.AddDate(0, 0, -1), date.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 12.5, summary[2024].ExpenseTotal)

	wallet, err := c.GetWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, -12.5, wallet.Balance)

	require.NoError(t, c.DeleteTransaction(ctx, created.ID))
	list, err = c.ListTransactions(ctx, domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAdminCalls_ForbiddenForUsers(t *testing.T) {
	backend, c, store := newDevClient(t)
	_, err := backend.AddUser("alice", "alice@example.com", "password1")
	require.NoError(t, err)
	loginInto(t, c, store, "alice@example.com", "password1")

	_, err = c.ListUsers(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}
