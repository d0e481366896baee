package interfaces

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	financeErrors "github.com/sebuszqo/FinanceDashboard/internal/finance/errors"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
)

const pageSize = 20

type TransactionsView struct {
	Items      []domain.Transaction
	Categories []domain.Category
	Filter     domain.TransactionFilter
	Form       domain.Transaction
	Page       int
	HasNext    bool
}

func (v TransactionsView) pageURL(page int) string {
	q := v.Filter.Query()
	q.Del("limit")
	q.Set("page", strconv.Itoa(page))
	return "/transactions?" + q.Encode()
}

func (v TransactionsView) PrevURL() string { return v.pageURL(v.Page - 1) }
func (v TransactionsView) NextURL() string { return v.pageURL(v.Page + 1) }

func parseFilter(q url.Values) (domain.TransactionFilter, error) {
	var ve financeErrors.ValidationErrors
	filter := domain.TransactionFilter{Limit: pageSize, Page: 1}

	if t := q.Get("type"); t != "" {
		if !domain.ValidType(t) {
			ve.Add(financeErrors.NewFieldError("type", "Invalid transaction type"))
		}
		filter.Type = t
	}
	var ok bool
	if filter.From, ok = parseDate(q.Get("from")); !ok {
		ve.Add(financeErrors.NewFieldError("from", "Invalid start date format"))
	}
	if filter.To, ok = parseDate(q.Get("to")); !ok {
		ve.Add(financeErrors.NewFieldError("to", "Invalid end date format"))
	}
	if p := q.Get("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page <= 0 {
			ve.Add(financeErrors.NewFieldError("page", "Invalid page value"))
		} else {
			filter.Page = page
		}
	}
	return filter, ve.OrNil()
}

func parseTransactionForm(r *http.Request) (domain.Transaction, error) {
	var t domain.Transaction
	if err := r.ParseForm(); err != nil {
		return t, financeErrors.NewValidationError("Invalid form submission")
	}
	t.Type = r.PostForm.Get("type")
	t.CategoryID = r.PostForm.Get("category_id")
	t.Description = strings.TrimSpace(r.PostForm.Get("description"))

	var ve financeErrors.ValidationErrors
	if raw := strings.TrimSpace(r.PostForm.Get("amount")); raw != "" {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			ve.Add(financeErrors.NewFieldError("amount", "Amount must be a number"))
		}
		t.Amount = amount
	}
	if date, ok := parseDate(r.PostForm.Get("date")); ok {
		t.Date = date
	} else {
		ve.Add(financeErrors.NewFieldError("date", "Invalid date format"))
	}
	if err := ve.OrNil(); err != nil {
		return t, err
	}
	return t, t.Validate()
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		h.renderTransactions(w, r, http.StatusBadRequest, domain.TransactionFilter{Limit: pageSize, Page: 1}, domain.Transaction{}, dialogFor(err, ""))
		return
	}
	h.renderTransactions(w, r, http.StatusOK, filter, domain.Transaction{}, nil)
}

func (h *Handler) renderTransactions(w http.ResponseWriter, r *http.Request, status int, filter domain.TransactionFilter, form domain.Transaction, dialog *view.Dialog) {
	client := h.clients(r)

	// One extra row tells whether a next page exists.
	query := filter
	query.Limit = filter.Limit + 1
	items, err := client.ListTransactions(r.Context(), query)
	if h.failed(w, r, err) {
		return
	}
	if err != nil {
		h.logFailure(r, "list transactions failed", err)
		if dialog == nil {
			dialog = dialogFor(err, "Could not load transactions.")
		}
		status = statusFor(err)
	}
	categories, err := client.ListCategories(r.Context())
	if h.failed(w, r, err) {
		return
	}

	data := TransactionsView{Categories: categories, Filter: filter, Form: form, Page: filter.Page}
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
		data.HasNext = true
	}
	data.Items = items
	if form.Date.IsZero() {
		data.Form.Date = h.now()
	}
	h.render(w, r, status, "transactions", view.Page{Title: "Transactions", Dialog: dialog, Data: data})
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := parseTransactionForm(r)
	if err == nil {
		_, err = h.clients(r).CreateTransaction(r.Context(), t)
		if h.failed(w, r, err) {
			return
		}
	}
	if err != nil {
		h.renderTransactions(w, r, statusFor(err), domain.TransactionFilter{Limit: pageSize, Page: 1}, t, dialogFor(err, "Failed to create transaction"))
		return
	}
	seeOther(w, r, "/transactions")
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	err := h.clients(r).DeleteTransaction(r.Context(), r.PathValue("id"))
	if h.failed(w, r, err) {
		return
	}
	if err != nil {
		h.logFailure(r, "delete transaction failed", err)
		h.renderTransactions(w, r, statusFor(err), domain.TransactionFilter{Limit: pageSize, Page: 1}, domain.Transaction{}, dialogFor(err, "Failed to delete transaction"))
		return
	}
	seeOther(w, r, "/transactions")
}
