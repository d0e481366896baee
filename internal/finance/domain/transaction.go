package domain

import (
	"net/url"
	"strconv"
	"time"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/errors"
)

const (
	TypeIncome  = "income"
	TypeExpense = "expense"

	maxDescriptionLength = 200
)

type Transaction struct {
	ID           string    `json:"id,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	Amount       float64   `json:"amount"`
	Type         string    `json:"type"` // "income" or "expense"
	Date         time.Time `json:"date"`
	Description  string    `json:"description,omitempty"`
	CategoryID   string    `json:"categoryId,omitempty"`
	CategoryName string    `json:"categoryName,omitempty"`
}

func ValidType(t string) bool {
	return t == TypeIncome || t == TypeExpense
}

// Validate checks a transaction entered in a form before it is sent.
func (t *Transaction) Validate() error {
	var ve errors.ValidationErrors
	if t.Amount <= 0 {
		ve.Add(errors.NewFieldError("amount", "Amount must be greater than zero"))
	}
	if !ValidType(t.Type) {
		ve.Add(errors.NewFieldError("type", "Type must be 'income' or 'expense'"))
	}
	if t.Date.IsZero() {
		ve.Add(errors.NewFieldError("date", "Date is required"))
	}
	if len(t.Description) > maxDescriptionLength {
		ve.Add(errors.NewFieldError("description", "Description must be of length less than 200"))
	}
	return ve.OrNil()
}

// TransactionFilter narrows a transaction listing. Zero fields are omitted.
type TransactionFilter struct {
	UserID string
	Type   string
	From   time.Time
	To     time.Time
	Limit  int
	Page   int
}

func (f TransactionFilter) Query() url.Values {
	q := url.Values{}
	if f.UserID != "" {
		q.Set("userId", f.UserID)
	}
	if ValidType(f.Type) {
		q.Set("type", f.Type)
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.Format(time.DateOnly))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.Format(time.DateOnly))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	return q
}
