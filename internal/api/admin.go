package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

func (c *Client) ListUsers(ctx context.Context) ([]user.Profile, error) {
	var out []user.Profile
	err := c.do(ctx, request{method: http.MethodGet, path: "/admin/users", authed: true}, &out)
	return out, err
}

func (c *Client) UpdateUserRole(ctx context.Context, id string, role user.Role) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   "/admin/users/" + url.PathEscape(id) + "/role",
		body:   map[string]string{"role": string(role)},
		authed: true,
	}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/admin/users/" + url.PathEscape(id), authed: true}, nil)
}

func (c *Client) GetGlobalAnalytics(ctx context.Context) (*domain.GlobalAnalytics, error) {
	var out domain.GlobalAnalytics
	if err := c.do(ctx, request{method: http.MethodGet, path: "/admin/analytics", authed: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAllTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := c.do(ctx, request{method: http.MethodGet, path: "/admin/transactions", query: filter.Query(), authed: true}, &out)
	return out, err
}
