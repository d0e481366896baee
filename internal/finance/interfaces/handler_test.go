package interfaces

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebuszqo/FinanceDashboard/internal/api"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/application"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	"github.com/sebuszqo/FinanceDashboard/internal/session"
	"github.com/sebuszqo/FinanceDashboard/internal/token"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
	"github.com/sebuszqo/FinanceDashboard/web"
)

type noProfiles struct{}

func (noProfiles) Me(context.Context) (*user.Profile, error) { return nil, api.ErrNotAuthenticated }

type testEnv struct {
	mux       *http.ServeMux
	api       *application.MockFinanceAPI
	signedOut bool
	sess      *session.Session
}

func newTestEnv(t *testing.T, mock *application.MockFinanceAPI) *testEnv {
	t.Helper()
	renderer, err := view.NewRenderer(web.TemplatesFS, nil)
	require.NoError(t, err)

	store := token.NewStore(token.NewMemoryBackend(), "client-1", nil)
	sess := session.New(store, noProfiles{})
	sess.SetUser(&user.Profile{ID: "u-1", Username: "alice", Email: "alice@example.com", Roles: user.NewRoleSet(user.RoleUser)})

	env := &testEnv{mux: http.NewServeMux(), api: mock, sess: sess}
	h := NewHandler(
		func(*http.Request) application.FinanceAPI { return mock },
		application.NewDashboardService(nil),
		renderer.Render,
		func(w http.ResponseWriter, r *http.Request) {
			env.signedOut = true
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		},
		nil,
	)
	h.now = func() time.Time { return time.Date(2024, time.May, 17, 0, 0, 0, 0, time.UTC) }
	h.RegisterRoutes(env.mux)
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

func sampleCategories() []domain.Category {
	return []domain.Category{
		{ID: "c-1", Name: "Salary", Type: domain.TypeIncome},
		{ID: "c-2", Name: "Groceries", Type: domain.TypeExpense},
	}
}

func TestDashboard_Success(t *testing.T) {
	env := newTestEnv(t, &application.MockFinanceAPI{
		Wallet:       &domain.Wallet{Balance: 1234.5, Currency: "PLN"},
		Transactions: []domain.Transaction{{ID: "t-1", Amount: 12, Type: domain.TypeExpense, Description: "Bread", Date: time.Now()}},
		Budgets:      []domain.Budget{{ID: "b-1", Name: "Food", Limit: 100, Spent: 50}},
	})

	w := env.do(http.MethodGet, "/home", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Hello, alice")
	assert.Contains(t, body, "1234.50 PLN")
	assert.Contains(t, body, "Bread")
	assert.Contains(t, body, "Food")
	assert.Contains(t, body, `href="/transactions"`)
}

func TestDashboard_SectionErrorIsShownInPlace(t *testing.T) {
	env := newTestEnv(t, &application.MockFinanceAPI{
		Wallet: &domain.Wallet{Balance: 10},
		Errs:   map[string]error{"ListBudgets": errors.New("timeout")},
	})

	w := env.do(http.MethodGet, "/home", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Could not load budgets.")
	assert.False(t, env.signedOut)
}

func TestDashboard_RejectedCredentialsSignOut(t *testing.T) {
	env := newTestEnv(t, &application.MockFinanceAPI{
		Errs: map[string]error{"GetWallet": &api.Error{Status: http.StatusUnauthorized}},
	})

	w := env.do(http.MethodGet, "/home", nil)

	assert.True(t, env.signedOut)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestTransactions_FilterIsPassedToBackend(t *testing.T) {
	mock := &application.MockFinanceAPI{Categories: sampleCategories()}
	env := newTestEnv(t, mock)

	w := env.do(http.MethodGet, "/transactions?type=expense&from=2024-01-01&page=2", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.TypeExpense, mock.LastFilter.Type)
	assert.Equal(t, 2, mock.LastFilter.Page)
	assert.Equal(t, pageSize+1, mock.LastFilter.Limit)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), mock.LastFilter.From)
	assert.Contains(t, w.Body.String(), "Previous")
}

func TestTransactions_NextPageLink(t *testing.T) {
	mock := &application.MockFinanceAPI{Transactions: make([]domain.Transaction, pageSize+1)}
	env := newTestEnv(t, mock)

	w := env.do(http.MethodGet, "/transactions", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "page=2")
}

func TestTransactions_InvalidFilter(t *testing.T) {
	env := newTestEnv(t, &application.MockFinanceAPI{})

	w := env.do(http.MethodGet, "/transactions?type=gift&from=yesterday", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid transaction type")
	assert.Contains(t, w.Body.String(), "Invalid start date format")
}

func TestCreateTransaction_ValidationMakesNoCall(t *testing.T) {
	mock := &application.MockFinanceAPI{}
	env := newTestEnv(t, mock)

	w := env.do(http.MethodPost, "/transactions", url.Values{"amount": {"-3"}, "type": {"expense"}, "date": {"2024-05-01"}})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Amount must be greater than zero")
	assert.Empty(t, mock.Transactions)
}

func TestCreateTransaction_Success(t *testing.T) {
	mock := &application.MockFinanceAPI{}
	env := newTestEnv(t, mock)

	w := env.do(http.MethodPost, "/transactions", url.Values{
		"amount": {"12,50"}, "type": {"expense"}, "date": {"2024-05-01"}, "category_id": {"c-2"}, "description": {" Bread "},
	})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/transactions", w.Header().Get("Location"))
	require.Len(t, mock.Transactions, 1)
	assert.Equal(t, 12.5, mock.Transactions[0].Amount)
	assert.Equal(t, "Bread", mock.Transactions[0].Description)
	assert.Equal(t, "c-2", mock.Transactions[0].CategoryID)
}

func TestCreateTransaction_BackendMessageIsShown(t *testing.T) {
	env := newTestEnv(t, &application.MockFinanceAPI{
		Errs: map[string]error{"CreateTransaction": &api.Error{Status: http.StatusBadRequest, Message: "Category does not exist"}},
	})

	w := env.do(http.MethodPost, "/transactions", url.Values{"amount": {"5"}, "type": {"income"}, "date": {"2024-05-01"}})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Category does not exist")
	assert.Contains(t, w.Body.String(), `value="5"`)
}

func TestDeleteTransaction(t *testing.T) {
	mock := &application.MockFinanceAPI{}
	env := newTestEnv(t, mock)

	w := env.do(http.MethodPost, "/transactions/t-9/delete", url.Values{})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, []string{"t-9"}, mock.Deleted)
}

func TestBudgets_ListAndCreate(t *testing.T) {
	mock := &application.MockFinanceAPI{
		Budgets:    []domain.Budget{{ID: "b-1", Name: "Food", Limit: 100, Spent: 120, Period: domain.PeriodMonthly}},
		Categories: sampleCategories(),
	}
	env := newTestEnv(t, mock)

	w := env.do(http.MethodGet, "/budgets", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `class="budget over"`)
	assert.Contains(t, w.Body.String(), "120.0%")

	w = env.do(http.MethodPost, "/budgets", url.Values{"name": {""}, "limit": {"0"}, "period": {"daily"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Len(t, mock.Budgets, 1)

	w = env.do(http.MethodPost, "/budgets", url.Values{"name": {"Fuel"}, "limit": {"300"}, "period": {"monthly"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Len(t, mock.Budgets, 2)

	w = env.do(http.MethodPost, "/budgets/b-1/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, []string{"b-1"}, mock.Deleted)
}

func TestCategories_SplitByType(t *testing.T) {
	mock := &application.MockFinanceAPI{Categories: sampleCategories()}
	env := newTestEnv(t, mock)

	w := env.do(http.MethodGet, "/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	income := strings.Index(body, "<h2>Income</h2>")
	expense := strings.Index(body, "<h2>Expense</h2>")
	assert.Less(t, income, strings.Index(body, "Salary"))
	assert.Less(t, expense, strings.Index(body, "Groceries"))

	w = env.do(http.MethodPost, "/categories", url.Values{"name": {"Rent"}, "type": {"expense"}, "color": {"#ff0000"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Len(t, mock.Categories, 3)
}

func TestAnalytics_Period(t *testing.T) {
	mock := &application.MockFinanceAPI{
		Summary: domain.Summary{2024: {Year: 2024, IncomeTotal: 10, Months: map[string]domain.MonthSummary{"May": {IncomeTotal: 10}}}},
		Totals:  []domain.CategoryTotal{{CategoryName: "Salary", Type: domain.TypeIncome, Total: 10}},
	}
	env := newTestEnv(t, mock)

	w := env.do(http.MethodGet, "/analytics?period=year", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "May 2024")
	assert.Contains(t, body, "Salary")
	assert.Contains(t, body, `href="/analytics?period=year" class="active"`)
}

func TestWallet_BackendFailure(t *testing.T) {
	env := newTestEnv(t, &application.MockFinanceAPI{
		Errs: map[string]error{"GetWallet": &api.Error{Status: http.StatusInternalServerError}},
	})

	w := env.do(http.MethodGet, "/wallet", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Could not load your wallet.")
}

func TestHTMXRequestRendersContentOnly(t *testing.T) {
	env := newTestEnv(t, &application.MockFinanceAPI{Wallet: &domain.Wallet{Currency: "PLN"}})

	req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
	req.Header.Set("HX-Request", "true")
	req = req.WithContext(session.NewContext(req.Context(), env.sess))
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<html")
	assert.Contains(t, w.Body.String(), "Total balance")
}
