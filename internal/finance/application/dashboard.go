package application

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
)

const (
	SectionWallet  = "wallet"
	SectionRecent  = "recent"
	SectionBudgets = "budgets"
	SectionSummary = "summary"

	defaultRecentLimit = 5
)

var sections = []string{SectionWallet, SectionRecent, SectionBudgets, SectionSummary}

// Dashboard is the home page. Sections that failed to load are named in Errors
// and left at their zero value.
type Dashboard struct {
	Wallet      *domain.Wallet
	Recent      []domain.Transaction
	Budgets     []BudgetUsage
	Series      Series
	TopExpenses []domain.CategoryTotal
	Errors      map[string]error
}

// Failed reports whether section could not be loaded.
func (d *Dashboard) Failed(section string) bool {
	return d.Errors[section] != nil
}

// AllFailed is true when no section loaded.
func (d *Dashboard) AllFailed() bool {
	return len(d.Errors) == len(sections)
}

type DashboardService struct {
	recentLimit int
	now         func() time.Time
	logger      *applog.Logger
}

func NewDashboardService(logger *applog.Logger) *DashboardService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DashboardService{
		recentLimit: defaultRecentLimit,
		now:         time.Now,
		logger:      logger.WithComponent(applog.ComponentFinance),
	}
}

// Load fetches every section concurrently. It never fails as a whole.
func (s *DashboardService) Load(ctx context.Context, api FinanceAPI) *Dashboard {
	d := &Dashboard{Errors: make(map[string]error)}
	from, to := PeriodMonth.Range(s.now())

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	record := func(section string, err error) {
		if err == nil {
			return
		}
		s.logger.InfoContext(ctx, "dashboard section failed",
			applog.FieldOperation, applog.OpDashboard, applog.FieldSection, section, applog.FieldError, err.Error())
		mu.Lock()
		d.Errors[section] = err
		mu.Unlock()
	}

	g.Go(func() error {
		wallet, err := api.GetWallet(ctx)
		record(SectionWallet, err)
		d.Wallet = wallet
		return nil
	})
	g.Go(func() error {
		recent, err := api.ListTransactions(ctx, domain.TransactionFilter{Limit: s.recentLimit, Page: 1})
		record(SectionRecent, err)
		d.Recent = recent
		return nil
	})
	g.Go(func() error {
		budgets, err := api.ListBudgets(ctx)
		record(SectionBudgets, err)
		d.Budgets = UsageFor(budgets)
		return nil
	})
	g.Go(func() error {
		summary, err := api.GetSummary(ctx, from, to)
		if err != nil {
			record(SectionSummary, err)
			return nil
		}
		d.Series = ChartSeries(summary, ByWeek)
		// Category breakdown is a nicety; its failure is not a section of its own.
		if totals, err := api.GetCategoryTotals(ctx, from, to, domain.TypeExpense); err == nil {
			d.TopExpenses = totals
		}
		return nil
	})
	_ = g.Wait()
	return d
}

// Unauthorized reports whether any section failed because credentials were
// rejected; isUnauthorized classifies the errors.
func (d *Dashboard) Unauthorized(isUnauthorized func(error) bool) bool {
	for _, err := range d.Errors {
		if isUnauthorized(err) {
			return true
		}
	}
	return false
}
