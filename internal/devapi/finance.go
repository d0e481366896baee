package devapi

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
)

func defaultCategories() []domain.Category {
	return []domain.Category{
		{ID: uuid.NewString(), Name: "Salary", Type: domain.TypeIncome, Color: "#2e7d32", Predefined: true},
		{ID: uuid.NewString(), Name: "Groceries", Type: domain.TypeExpense, Color: "#c62828", Predefined: true},
		{ID: uuid.NewString(), Name: "Housing", Type: domain.TypeExpense, Color: "#6a1b9a", Predefined: true},
		{ID: uuid.NewString(), Name: "Transport", Type: domain.TypeExpense, Color: "#1565c0", Predefined: true},
	}
}

// AddTransaction seeds a transaction for userID.
func (b *Backend) AddTransaction(userID string, t domain.Transaction) domain.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.UserID = userID
	t.CategoryName = b.categoryName(userID, t.CategoryID)
	b.transactions[userID] = append(b.transactions[userID], t)
	return t
}

func (b *Backend) categoryName(userID, categoryID string) string {
	for _, c := range b.categories[userID] {
		if c.ID == categoryID {
			return c.Name
		}
	}
	return ""
}

func parsePeriod(r *http.Request) (time.Time, time.Time) {
	from, _ := time.Parse(time.DateOnly, r.URL.Query().Get("from"))
	to, _ := time.Parse(time.DateOnly, r.URL.Query().Get("to"))
	if !to.IsZero() {
		// Inclusive of the whole final day.
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to
}

func inPeriod(t time.Time, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

func filterTransactions(all []domain.Transaction, r *http.Request) []domain.Transaction {
	from, to := parsePeriod(r)
	txType := r.URL.Query().Get("type")
	out := make([]domain.Transaction, 0, len(all))
	for _, t := range all {
		if txType != "" && t.Type != txType {
			continue
		}
		if !inPeriod(t.Date, from, to) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if limit > 0 {
		if page < 1 {
			page = 1
		}
		start := (page - 1) * limit
		if start >= len(out) {
			return []domain.Transaction{}
		}
		end := start + limit
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out
}

func (b *Backend) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	out := filterTransactions(b.transactions[userIDFrom(r)], r)
	b.mu.RUnlock()
	respondSuccess(w, http.StatusOK, out)
}

func (b *Backend) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var t domain.Transaction
	if !decode(w, r, &t) {
		return
	}
	if err := t.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "Validation errors occurred", validationMessages(err))
		return
	}
	t.ID = ""
	respondSuccess(w, http.StatusCreated, b.AddTransaction(userIDFrom(r), t))
}

func (b *Backend) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, id := userIDFrom(r), r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.transactions[userID]
	for i, t := range list {
		if t.ID == id {
			b.transactions[userID] = append(list[:i:i], list[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	respondError(w, http.StatusNotFound, "Transaction not found")
}

func (b *Backend) spent(userID, categoryID string) float64 {
	var total float64
	for _, t := range b.transactions[userID] {
		if t.Type == domain.TypeExpense && (categoryID == "" || t.CategoryID == categoryID) {
			total += t.Amount
		}
	}
	return total
}

func (b *Backend) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Budget, len(b.budgets[userID]))
	for i, budget := range b.budgets[userID] {
		budget.Spent = b.spent(userID, budget.CategoryID)
		out[i] = budget
	}
	respondSuccess(w, http.StatusOK, out)
}

func (b *Backend) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var budget domain.Budget
	if !decode(w, r, &budget) {
		return
	}
	if err := budget.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "Validation errors occurred", validationMessages(err))
		return
	}
	userID := userIDFrom(r)

	b.mu.Lock()
	defer b.mu.Unlock()

	budget.ID = uuid.NewString()
	budget.CategoryName = b.categoryName(userID, budget.CategoryID)
	if budget.StartDate.IsZero() {
		budget.StartDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	b.budgets[userID] = append(b.budgets[userID], budget)
	budget.Spent = b.spent(userID, budget.CategoryID)
	respondSuccess(w, http.StatusCreated, budget)
}

func (b *Backend) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, id := userIDFrom(r), r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.budgets[userID]
	for i, budget := range list {
		if budget.ID == id {
			b.budgets[userID] = append(list[:i:i], list[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	respondError(w, http.StatusNotFound, "Budget not found")
}

func (b *Backend) handleListCategories(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	out := append([]domain.Category(nil), b.categories[userIDFrom(r)]...)
	b.mu.RUnlock()
	respondSuccess(w, http.StatusOK, out)
}

func (b *Backend) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c domain.Category
	if !decode(w, r, &c) {
		return
	}
	if err := c.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "Validation errors occurred", validationMessages(err))
		return
	}
	userID := userIDFrom(r)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.categories[userID] {
		if existing.Name == c.Name && existing.Type == c.Type {
			respondError(w, http.StatusConflict, "Category already exists")
			return
		}
	}
	c.ID = uuid.NewString()
	c.Predefined = false
	b.categories[userID] = append(b.categories[userID], c)
	respondSuccess(w, http.StatusCreated, c)
}

// summarize buckets transactions by year, month name and ISO week.
func summarize(transactions []domain.Transaction) domain.Summary {
	summary := make(domain.Summary)

	for _, transaction := range transactions {
		year := transaction.Date.Year()
		month := transaction.Date.Month().String()
		_, week := transaction.Date.ISOWeek()

		yearSummary, exists := summary[year]
		if !exists {
			yearSummary = domain.YearSummary{Year: year, Months: make(map[string]domain.MonthSummary)}
		}
		monthSummary := yearSummary.Months[month]

		income, expense := 0.0, 0.0
		if transaction.Type == domain.TypeIncome {
			income = transaction.Amount
		} else if transaction.Type == domain.TypeExpense {
			expense = transaction.Amount
		}
		yearSummary.IncomeTotal += income
		yearSummary.ExpenseTotal += expense
		monthSummary.IncomeTotal += income
		monthSummary.ExpenseTotal += expense

		found := false
		for i := range monthSummary.Weeks {
			if monthSummary.Weeks[i].Week == week {
				monthSummary.Weeks[i].IncomeTotal += income
				monthSummary.Weeks[i].ExpenseTotal += expense
				found = true
				break
			}
		}
		if !found {
			monthSummary.Weeks = append(monthSummary.Weeks, domain.WeekSummary{
				Week:         week,
				IncomeTotal:  income,
				ExpenseTotal: expense,
			})
		}

		yearSummary.Months[month] = monthSummary
		summary[year] = yearSummary
	}
	return summary
}

func categoryTotals(transactions []domain.Transaction) []domain.CategoryTotal {
	byKey := make(map[string]*domain.CategoryTotal)
	var order []string
	for _, t := range transactions {
		key := t.Type + "/" + t.CategoryID
		ct, ok := byKey[key]
		if !ok {
			ct = &domain.CategoryTotal{CategoryID: t.CategoryID, CategoryName: t.CategoryName, Type: t.Type}
			byKey[key] = ct
			order = append(order, key)
		}
		ct.Total += t.Amount
	}
	out := make([]domain.CategoryTotal, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

func (b *Backend) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, to := parsePeriod(r)
	b.mu.RLock()
	var selected []domain.Transaction
	for _, t := range b.transactions[userIDFrom(r)] {
		if inPeriod(t.Date, from, to) {
			selected = append(selected, t)
		}
	}
	b.mu.RUnlock()
	respondSuccess(w, http.StatusOK, summarize(selected))
}

func (b *Backend) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	selected := filterTransactions(b.transactions[userIDFrom(r)], r)
	b.mu.RUnlock()
	respondSuccess(w, http.StatusOK, categoryTotals(selected))
}

func (b *Backend) handleWallet(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	var balance float64
	for _, t := range b.transactions[userIDFrom(r)] {
		if t.Type == domain.TypeIncome {
			balance += t.Amount
		} else {
			balance -= t.Amount
		}
	}
	b.mu.RUnlock()

	respondSuccess(w, http.StatusOK, domain.Wallet{
		Balance:  balance,
		Currency: "PLN",
		Accounts: []domain.Account{{ID: "main", Name: "Main account", Type: "checking", Balance: balance, Currency: "PLN"}},
	})
}
