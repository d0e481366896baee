package domain

import (
	"strings"
	"time"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/errors"
)

const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

type Budget struct {
	ID           string    `json:"id,omitempty"`
	Name         string    `json:"name"`
	CategoryID   string    `json:"categoryId,omitempty"`
	CategoryName string    `json:"categoryName,omitempty"`
	Limit        float64   `json:"limit"`
	Spent        float64   `json:"spent"`
	Period       string    `json:"period"`
	StartDate    time.Time `json:"startDate,omitempty"`
}

func (b *Budget) Validate() error {
	var ve errors.ValidationErrors
	if strings.TrimSpace(b.Name) == "" {
		ve.Add(errors.NewFieldError("name", "Name is required"))
	}
	if b.Limit <= 0 {
		ve.Add(errors.NewFieldError("limit", "Limit must be greater than zero"))
	}
	switch b.Period {
	case PeriodWeekly, PeriodMonthly, PeriodYearly:
	default:
		ve.Add(errors.NewFieldError("period", "Period must be 'weekly', 'monthly' or 'yearly'"))
	}
	return ve.OrNil()
}
