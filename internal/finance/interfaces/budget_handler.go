package interfaces

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/application"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	financeErrors "github.com/sebuszqo/FinanceDashboard/internal/finance/errors"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
)

type BudgetsView struct {
	Items      []application.BudgetUsage
	Categories []domain.Category
	Form       domain.Budget
}

func parseBudgetForm(r *http.Request) (domain.Budget, error) {
	var b domain.Budget
	if err := r.ParseForm(); err != nil {
		return b, financeErrors.NewValidationError("Invalid form submission")
	}
	b.Name = strings.TrimSpace(r.PostForm.Get("name"))
	b.Period = r.PostForm.Get("period")
	b.CategoryID = r.PostForm.Get("category_id")
	if raw := strings.TrimSpace(r.PostForm.Get("limit")); raw != "" {
		limit, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return b, financeErrors.NewFieldError("limit", "Limit must be a number")
		}
		b.Limit = limit
	}
	return b, b.Validate()
}

func (h *Handler) Budgets(w http.ResponseWriter, r *http.Request) {
	h.renderBudgets(w, r, http.StatusOK, domain.Budget{}, nil)
}

func (h *Handler) renderBudgets(w http.ResponseWriter, r *http.Request, status int, form domain.Budget, dialog *view.Dialog) {
	client := h.clients(r)
	budgets, err := client.ListBudgets(r.Context())
	if h.failed(w, r, err) {
		return
	}
	if err != nil {
		h.logFailure(r, "list budgets failed", err)
		if dialog == nil {
			dialog = dialogFor(err, "Could not load budgets.")
		}
		status = statusFor(err)
	}
	categories, err := client.ListCategories(r.Context())
	if h.failed(w, r, err) {
		return
	}
	h.render(w, r, status, "budgets", view.Page{
		Title:  "Budgets",
		Dialog: dialog,
		Data:   BudgetsView{Items: application.UsageFor(budgets), Categories: categories, Form: form},
	})
}

func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	b, err := parseBudgetForm(r)
	if err == nil {
		_, err = h.clients(r).CreateBudget(r.Context(), b)
		if h.failed(w, r, err) {
			return
		}
	}
	if err != nil {
		h.renderBudgets(w, r, statusFor(err), b, dialogFor(err, "Failed to create budget"))
		return
	}
	seeOther(w, r, "/budgets")
}

func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	err := h.clients(r).DeleteBudget(r.Context(), r.PathValue("id"))
	if h.failed(w, r, err) {
		return
	}
	if err != nil {
		h.logFailure(r, "delete budget failed", err)
		h.renderBudgets(w, r, statusFor(err), domain.Budget{}, dialogFor(err, "Failed to delete budget"))
		return
	}
	seeOther(w, r, "/budgets")
}
