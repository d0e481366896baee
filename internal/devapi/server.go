// Package devapi is an in-memory implementation of the finance REST backend.
// It backs handler tests and the devbackend binary for local runs.
package devapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

type account struct {
	profile      user.Profile
	passwordHash []byte
	rotationKey  string
	otpSecret    string
	lastOTP      string
	createdAt    time.Time
}

// Calls counts requests received per endpoint so tests can assert on
// network use. Requests rejected for a bad token count too.
type Calls struct {
	Login    atomic.Int32
	Me       atomic.Int32
	Refresh  atomic.Int32
	Register atomic.Int32
	SendOTP  atomic.Int32
}

type Backend struct {
	mu           sync.RWMutex
	accounts     map[string]*account // by user ID
	byEmail      map[string]string   // lowercased email to user ID
	accessTokens map[string]string   // live access token IDs to user ID
	transactions map[string][]domain.Transaction
	budgets      map[string][]domain.Budget
	categories   map[string][]domain.Category

	jwt        *jwtManager
	bcryptCost int
	meDelay    atomic.Int64

	Calls Calls
	mux   *http.ServeMux
}

// New builds an empty backend signing tokens with secret.
func New(secret string) *Backend {
	b := &Backend{
		accounts:     make(map[string]*account),
		byEmail:      make(map[string]string),
		accessTokens: make(map[string]string),
		transactions: make(map[string][]domain.Transaction),
		budgets:      make(map[string][]domain.Budget),
		categories:   make(map[string][]domain.Category),
		jwt:          newJWTManager(secret),
		bcryptCost:   bcrypt.MinCost,
	}
	b.registerRoutes()
	return b
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

func (b *Backend) registerRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("POST /auth/register", b.handleRegister)
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("POST /auth/send-otp", b.handleSendOTP)
	mux.HandleFunc("POST /auth/verify-otp", b.handleVerifyOTP)
	mux.Handle("GET /auth/me", counted(&b.Calls.Me, b.authenticated(b.handleMe)))
	mux.Handle("PUT /auth/change-password", b.authenticated(b.handleChangePassword))
	mux.Handle("PUT /users/me", b.authenticated(b.handleUpdateProfile))

	mux.Handle("GET /transactions", b.authenticated(b.handleListTransactions))
	mux.Handle("POST /transactions", b.authenticated(b.handleCreateTransaction))
	mux.Handle("DELETE /transactions/{id}", b.authenticated(b.handleDeleteTransaction))
	mux.Handle("GET /budgets", b.authenticated(b.handleListBudgets))
	mux.Handle("POST /budgets", b.authenticated(b.handleCreateBudget))
	mux.Handle("DELETE /budgets/{id}", b.authenticated(b.handleDeleteBudget))
	mux.Handle("GET /categories", b.authenticated(b.handleListCategories))
	mux.Handle("POST /categories", b.authenticated(b.handleCreateCategory))
	mux.Handle("GET /analytics/summary", b.authenticated(b.handleSummary))
	mux.Handle("GET /analytics/categories", b.authenticated(b.handleCategoryTotals))
	mux.Handle("GET /wallet", b.authenticated(b.handleWallet))

	mux.Handle("GET /admin/users", b.admin(b.handleListUsers))
	mux.Handle("PUT /admin/users/{id}/role", b.admin(b.handleUpdateRole))
	mux.Handle("DELETE /admin/users/{id}", b.admin(b.handleDeleteUser))
	mux.Handle("GET /admin/analytics", b.admin(b.handleGlobalAnalytics))
	mux.Handle("GET /admin/transactions", b.admin(b.handleAllTransactions))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Path not found")
	})
	b.mux = mux
}

// counted bumps n for every request received, rejected ones included.
func counted(n *atomic.Int32, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		next.ServeHTTP(w, r)
	})
}

// SetMeDelay makes /auth/me stall, for exercising hydration timeouts.
func (b *Backend) SetMeDelay(d time.Duration) {
	b.meDelay.Store(int64(d))
}

// SetAccessTokenDuration changes the lifetime of tokens issued from now on.
func (b *Backend) SetAccessTokenDuration(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jwt.accessDuration = d
}

// RevokeAccessTokens invalidates every issued access token; refresh tokens stay valid.
func (b *Backend) RevokeAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessTokens = make(map[string]string)
}

// LastOTP returns the most recent reset code sent to email, standing in for the inbox.
func (b *Backend) LastOTP(email string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if id, ok := b.byEmail[strings.ToLower(email)]; ok {
		return b.accounts[id].lastOTP
	}
	return ""
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondSuccess(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}

func respondError(w http.ResponseWriter, status int, message string, errors ...[]string) {
	payload := map[string]interface{}{
		"status":  "error",
		"message": message,
		"code":    status,
	}
	if len(errors) > 0 && len(errors[0]) > 0 {
		payload["errors"] = errors[0]
	}
	respondJSON(w, status, payload)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
