package interfaces

import (
	"net/http"
	"strings"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	financeErrors "github.com/sebuszqo/FinanceDashboard/internal/finance/errors"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
)

type CategoriesView struct {
	Income  []domain.Category
	Expense []domain.Category
	Form    domain.Category
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	h.renderCategories(w, r, http.StatusOK, domain.Category{}, nil)
}

func (h *Handler) renderCategories(w http.ResponseWriter, r *http.Request, status int, form domain.Category, dialog *view.Dialog) {
	categories, err := h.clients(r).ListCategories(r.Context())
	if h.failed(w, r, err) {
		return
	}
	if err != nil {
		h.logFailure(r, "list categories failed", err)
		if dialog == nil {
			dialog = dialogFor(err, "Failed to retrieve categories")
		}
		status = statusFor(err)
	}

	data := CategoriesView{Form: form}
	for _, c := range categories {
		if c.Type == domain.TypeIncome {
			data.Income = append(data.Income, c)
		} else {
			data.Expense = append(data.Expense, c)
		}
	}
	h.render(w, r, status, "categories", view.Page{Title: "Categories", Dialog: dialog, Data: data})
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var c domain.Category
	err := r.ParseForm()
	if err != nil {
		err = financeErrors.NewValidationError("Invalid form submission")
	} else {
		c = domain.Category{
			Name:  strings.TrimSpace(r.PostForm.Get("name")),
			Type:  r.PostForm.Get("type"),
			Color: r.PostForm.Get("color"),
		}
		err = c.Validate()
	}
	if err == nil {
		_, err = h.clients(r).CreateCategory(r.Context(), c)
		if h.failed(w, r, err) {
			return
		}
	}
	if err != nil {
		h.renderCategories(w, r, statusFor(err), c, dialogFor(err, "Failed to create category"))
		return
	}
	seeOther(w, r, "/categories")
}
