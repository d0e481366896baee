package application

import (
	"math"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
)

const warnAtPercent = 80

type UsageLevel string

const (
	UsageOK      UsageLevel = "ok"
	UsageWarning UsageLevel = "warning"
	UsageOver    UsageLevel = "over"
)

// BudgetUsage is a budget with its spending expressed against the limit.
type BudgetUsage struct {
	domain.Budget
	Percent   float64
	Remaining float64
	Level     UsageLevel
}

func NewBudgetUsage(b domain.Budget) BudgetUsage {
	u := BudgetUsage{Budget: b, Remaining: b.Limit - b.Spent, Level: UsageOK}
	if b.Limit > 0 {
		u.Percent = math.Round(b.Spent/b.Limit*1000) / 10
	} else if b.Spent > 0 {
		u.Percent = 100
	}
	switch {
	case u.Remaining < 0:
		u.Level = UsageOver
	case u.Percent >= warnAtPercent:
		u.Level = UsageWarning
	}
	return u
}

// BarPercent caps Percent for progress bars.
func (u BudgetUsage) BarPercent() float64 {
	return math.Min(u.Percent, 100)
}

func UsageFor(budgets []domain.Budget) []BudgetUsage {
	out := make([]BudgetUsage, len(budgets))
	for i, b := range budgets {
		out[i] = NewBudgetUsage(b)
	}
	return out
}
