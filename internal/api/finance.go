package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
)

func (c *Client) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := c.do(ctx, request{method: http.MethodGet, path: "/transactions", query: filter.Query(), authed: true}, &out)
	return out, err
}

func (c *Client) CreateTransaction(ctx context.Context, t domain.Transaction) (*domain.Transaction, error) {
	var out domain.Transaction
	if err := c.do(ctx, request{method: http.MethodPost, path: "/transactions", body: t, authed: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/transactions/" + url.PathEscape(id), authed: true}, nil)
}

func (c *Client) ListBudgets(ctx context.Context) ([]domain.Budget, error) {
	var out []domain.Budget
	err := c.do(ctx, request{method: http.MethodGet, path: "/budgets", authed: true}, &out)
	return out, err
}

func (c *Client) CreateBudget(ctx context.Context, b domain.Budget) (*domain.Budget, error) {
	var out domain.Budget
	if err := c.do(ctx, request{method: http.MethodPost, path: "/budgets", body: b, authed: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBudget(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/budgets/" + url.PathEscape(id), authed: true}, nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := c.do(ctx, request{method: http.MethodGet, path: "/categories", authed: true}, &out)
	return out, err
}

func (c *Client) CreateCategory(ctx context.Context, cat domain.Category) (*domain.Category, error) {
	var out domain.Category
	if err := c.do(ctx, request{method: http.MethodPost, path: "/categories", body: cat, authed: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func periodQuery(from, to time.Time) url.Values {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from", from.Format(time.DateOnly))
	}
	if !to.IsZero() {
		q.Set("to", to.Format(time.DateOnly))
	}
	return q
}

// GetSummary returns year/month/week totals for the period.
func (c *Client) GetSummary(ctx context.Context, from, to time.Time) (domain.Summary, error) {
	out := domain.Summary{}
	err := c.do(ctx, request{method: http.MethodGet, path: "/analytics/summary", query: periodQuery(from, to), authed: true}, &out)
	return out, err
}

func (c *Client) GetCategoryTotals(ctx context.Context, from, to time.Time, txType string) ([]domain.CategoryTotal, error) {
	q := periodQuery(from, to)
	if domain.ValidType(txType) {
		q.Set("type", txType)
	}
	var out []domain.CategoryTotal
	err := c.do(ctx, request{method: http.MethodGet, path: "/analytics/categories", query: q, authed: true}, &out)
	return out, err
}

func (c *Client) GetWallet(ctx context.Context) (*domain.Wallet, error) {
	var out domain.Wallet
	if err := c.do(ctx, request{method: http.MethodGet, path: "/wallet", authed: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
