package domain

import (
	"strings"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/errors"
)

const maxCategoryNameLength = 50

type Category struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Type       string `json:"type"` // "income" or "expense"
	Color      string `json:"color,omitempty"`
	Predefined bool   `json:"predefined,omitempty"`
}

func (c *Category) Validate() error {
	var ve errors.ValidationErrors
	name := strings.TrimSpace(c.Name)
	if name == "" {
		ve.Add(errors.NewFieldError("name", "Name is required"))
	} else if len(name) > maxCategoryNameLength {
		ve.Add(errors.NewFieldError("name", "Name must be at most 50 characters"))
	}
	if !ValidType(c.Type) {
		ve.Add(errors.NewFieldError("type", "Type must be 'income' or 'expense'"))
	}
	return ve.OrNil()
}
