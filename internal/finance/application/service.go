package application

import (
	"context"
	"time"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
)

// FinanceAPI is the slice of the backend client the finance views use.
type FinanceAPI interface {
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, t domain.Transaction) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	ListBudgets(ctx context.Context) ([]domain.Budget, error)
	CreateBudget(ctx context.Context, b domain.Budget) (*domain.Budget, error)
	DeleteBudget(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, c domain.Category) (*domain.Category, error)
	GetSummary(ctx context.Context, from, to time.Time) (domain.Summary, error)
	GetCategoryTotals(ctx context.Context, from, to time.Time, txType string) ([]domain.CategoryTotal, error)
	GetWallet(ctx context.Context) (*domain.Wallet, error)
}

type Period string

const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
	PeriodAll     Period = "all"
)

var Periods = []Period{PeriodMonth, PeriodQuarter, PeriodYear, PeriodAll}

// ParsePeriod falls back to the current month for unknown input.
func ParsePeriod(s string) Period {
	for _, p := range Periods {
		if string(p) == s {
			return p
		}
	}
	return PeriodMonth
}

// Range returns the inclusive date bounds of p relative to now. PeriodAll is unbounded.
func (p Period) Range(now time.Time) (time.Time, time.Time) {
	y, m, _ := now.Date()
	loc := now.Location()
	switch p {
	case PeriodQuarter:
		start := time.Date(y, m-(m-1)%3, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 3, -1)
	case PeriodYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), time.Date(y, time.December, 31, 0, 0, 0, 0, loc)
	case PeriodAll:
		return time.Time{}, time.Time{}
	default:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, -1)
	}
}

// Granularity suited to charting the period.
func (p Period) Granularity() Granularity {
	switch p {
	case PeriodMonth:
		return ByWeek
	case PeriodAll:
		return ByYear
	default:
		return ByMonth
	}
}
