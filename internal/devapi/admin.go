package devapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	financeErrors "github.com/sebuszqo/FinanceDashboard/internal/finance/errors"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

func validationMessages(err error) []string {
	if msgs := financeErrors.Messages(err); len(msgs) > 0 {
		return msgs
	}
	return []string{err.Error()}
}

func (b *Backend) handleListUsers(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	out := make([]user.Profile, 0, len(b.accounts))
	created := make(map[string]int64, len(b.accounts))
	for _, acc := range b.accounts {
		out = append(out, acc.profile)
		created[acc.profile.ID] = acc.createdAt.UnixNano()
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return created[out[i].ID] < created[out[j].ID] })
	respondSuccess(w, http.StatusOK, out)
}

func (b *Backend) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}
	role, err := user.ParseRole(req.Role)
	if err != nil {
		respondError(w, http.StatusBadRequest, "role must be USER or ADMIN")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.accounts[r.PathValue("id")]
	if !ok {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	acc.profile.Roles = user.NewRoleSet(role)
	respondSuccess(w, http.StatusOK, acc.profile)
}

func (b *Backend) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == userIDFrom(r) {
		respondError(w, http.StatusBadRequest, "admins cannot delete themselves")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.accounts[id]
	if !ok {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	delete(b.byEmail, strings.ToLower(acc.profile.Email))
	delete(b.accounts, id)
	delete(b.transactions, id)
	delete(b.budgets, id)
	delete(b.categories, id)
	for tokenID, owner := range b.accessTokens {
		if owner == id {
			delete(b.accessTokens, tokenID)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) allTransactions() []domain.Transaction {
	var all []domain.Transaction
	for _, list := range b.transactions {
		all = append(all, list...)
	}
	return all
}

func (b *Backend) handleGlobalAnalytics(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	all := b.allTransactions()
	users := len(b.accounts)
	active := 0
	for id := range b.accounts {
		if len(b.transactions[id]) > 0 {
			active++
		}
	}
	b.mu.RUnlock()

	out := domain.GlobalAnalytics{
		TotalUsers:        users,
		ActiveUsers:       active,
		TotalTransactions: len(all),
		Summary:           summarize(all),
	}
	for _, t := range all {
		if t.Type == domain.TypeIncome {
			out.TotalIncome += t.Amount
		} else {
			out.TotalExpense += t.Amount
		}
	}
	top := categoryTotals(all)
	if len(top) > 5 {
		top = top[:5]
	}
	out.TopCategories = top
	respondSuccess(w, http.StatusOK, out)
}

func (b *Backend) handleAllTransactions(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	var source []domain.Transaction
	if userID := r.URL.Query().Get("userId"); userID != "" {
		source = b.transactions[userID]
	} else {
		source = b.allTransactions()
	}
	out := filterTransactions(source, r)
	b.mu.RUnlock()
	respondSuccess(w, http.StatusOK, out)
}
