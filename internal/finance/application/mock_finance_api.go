package application

import (
	"context"
	"sync"
	"time"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
)

// MockFinanceAPI is an in-memory FinanceAPI for handler tests. Errors set in
// Errs are returned by the method of the same name.
type MockFinanceAPI struct {
	mu           sync.Mutex
	Transactions []domain.Transaction
	Budgets      []domain.Budget
	Categories   []domain.Category
	Summary      domain.Summary
	Totals       []domain.CategoryTotal
	Wallet       *domain.Wallet
	Errs         map[string]error

	LastFilter domain.TransactionFilter
	Deleted    []string
}

func (m *MockFinanceAPI) err(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Errs[method]
}

func (m *MockFinanceAPI) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if err := m.err("ListTransactions"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastFilter = filter
	var out []domain.Transaction
	for _, t := range m.Transactions {
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		out = append(out, t)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockFinanceAPI) CreateTransaction(_ context.Context, t domain.Transaction) (*domain.Transaction, error) {
	if err := m.err("CreateTransaction"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transactions = append(m.Transactions, t)
	return &t, nil
}

func (m *MockFinanceAPI) DeleteTransaction(_ context.Context, id string) error {
	if err := m.err("DeleteTransaction"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockFinanceAPI) ListBudgets(context.Context) ([]domain.Budget, error) {
	if err := m.err("ListBudgets"); err != nil {
		return nil, err
	}
	return m.Budgets, nil
}

func (m *MockFinanceAPI) CreateBudget(_ context.Context, b domain.Budget) (*domain.Budget, error) {
	if err := m.err("CreateBudget"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Budgets = append(m.Budgets, b)
	return &b, nil
}

func (m *MockFinanceAPI) DeleteBudget(_ context.Context, id string) error {
	if err := m.err("DeleteBudget"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockFinanceAPI) ListCategories(context.Context) ([]domain.Category, error) {
	if err := m.err("ListCategories"); err != nil {
		return nil, err
	}
	return m.Categories, nil
}

func (m *MockFinanceAPI) CreateCategory(_ context.Context, c domain.Category) (*domain.Category, error) {
	if err := m.err("CreateCategory"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Categories = append(m.Categories, c)
	return &c, nil
}

func (m *MockFinanceAPI) GetSummary(context.Context, time.Time, time.Time) (domain.Summary, error) {
	if err := m.err("GetSummary"); err != nil {
		return nil, err
	}
	return m.Summary, nil
}

func (m *MockFinanceAPI) GetCategoryTotals(context.Context, time.Time, time.Time, string) ([]domain.CategoryTotal, error) {
	if err := m.err("GetCategoryTotals"); err != nil {
		return nil, err
	}
	return m.Totals, nil
}

func (m *MockFinanceAPI) GetWallet(context.Context) (*domain.Wallet, error) {
	if err := m.err("GetWallet"); err != nil {
		return nil, err
	}
	return m.Wallet, nil
}
