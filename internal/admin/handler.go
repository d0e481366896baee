// Package admin serves the pages behind the ADMIN guard.
package admin

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"

	"github.com/sebuszqo/FinanceDashboard/internal/api"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/application"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
	"github.com/sebuszqo/FinanceDashboard/internal/session"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
)

const oversightLimit = 100

var ErrSelfDelete = errors.New("you cannot delete your own account")

// AdminAPI is the part of the backend client the admin pages call.
type AdminAPI interface {
	ListUsers(ctx context.Context) ([]user.Profile, error)
	UpdateUserRole(ctx context.Context, id string, role user.Role) error
	DeleteUser(ctx context.Context, id string) error
	GetGlobalAnalytics(ctx context.Context) (*domain.GlobalAnalytics, error)
	ListAllTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
}

type ClientFunc func(r *http.Request) AdminAPI

type RenderFunc func(w http.ResponseWriter, r *http.Request, status int, name string, page view.Page)

type OverviewView struct {
	Analytics *domain.GlobalAnalytics
	Error     string
}

type UsersView struct {
	Users []user.Profile
	Roles []user.Role
	Self  string
}

type AnalyticsView struct {
	Analytics *domain.GlobalAnalytics
	Series    application.Series
	Error     string
}

type TransactionsView struct {
	Users  []user.Profile
	Filter domain.TransactionFilter
	Items  []domain.Transaction
	Error  string
}

type Handler struct {
	clients ClientFunc
	render  RenderFunc
	signOut http.HandlerFunc
	logger  *applog.Logger
}

func NewHandler(clients ClientFunc, render RenderFunc, signOut http.HandlerFunc, logger *applog.Logger) *Handler {
	if clients == nil {
		log.Fatal("Client function must not be nil")
		return nil
	}
	if render == nil || signOut == nil {
		log.Fatal("Render and sign-out functions must not be nil")
		return nil
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Handler{
		clients: clients,
		render:  render,
		signOut: signOut,
		logger:  logger.WithComponent(applog.ComponentAdmin),
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin", h.Overview)
	mux.HandleFunc("GET /admin/users", h.Users)
	mux.HandleFunc("POST /admin/users/{id}/role", h.UpdateRole)
	mux.HandleFunc("POST /admin/users/{id}/delete", h.DeleteUser)
	mux.HandleFunc("GET /admin/analytics", h.Analytics)
	mux.HandleFunc("GET /admin/transactions", h.Transactions)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.clients(r).GetGlobalAnalytics(r.Context())
	if h.unauthorized(w, r, err) {
		return
	}
	data := OverviewView{Analytics: analytics}
	if err != nil {
		h.logFailure(r, "global analytics unavailable", err)
		data.Error = api.Message(err, "Analytics are unavailable right now.")
	}
	h.render(w, r, http.StatusOK, "admin_dashboard", view.Page{Title: "Admin", Data: data})
}

func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, http.StatusOK, nil)
}

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, status int, dialog *view.Dialog) {
	users, err := h.clients(r).ListUsers(r.Context())
	if h.unauthorized(w, r, err) {
		return
	}
	if err != nil {
		h.logFailure(r, "user listing failed", err)
		status = http.StatusBadGateway
		dialog = view.ErrorDialog(api.Message(err, "Could not load users."))
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	h.render(w, r, status, "admin_users", view.Page{
		Title:  "Users",
		Dialog: dialog,
		Data:   UsersView{Users: users, Roles: user.AllRoles, Self: selfID(r)},
	})
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	role, err := user.ParseRole(r.PostFormValue("role"))
	if err != nil {
		h.renderUsers(w, r, http.StatusUnprocessableEntity, view.ErrorDialog("Choose a known role."))
		return
	}
	id := r.PathValue("id")
	err = h.clients(r).UpdateUserRole(r.Context(), id, role)
	if h.unauthorized(w, r, err) {
		return
	}
	if err != nil {
		h.logFailure(r, "role change failed", err)
		h.renderUsers(w, r, statusFor(err), view.ErrorDialog(api.Message(err, "Could not change the role.")))
		return
	}
	h.logger.InfoContext(r.Context(), "role changed", applog.FieldUserID, id, "role", string(role))
	if id == selfID(r) {
		// Our own roles changed, so the session must pick them up.
		if s := session.FromContext(r.Context()); s != nil {
			s.Reload(r.Context())
		}
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == selfID(r) {
		h.renderUsers(w, r, http.StatusUnprocessableEntity, view.ErrorDialog(ErrSelfDelete.Error()))
		return
	}
	err := h.clients(r).DeleteUser(r.Context(), id)
	if h.unauthorized(w, r, err) {
		return
	}
	if err != nil {
		h.logFailure(r, "user deletion failed", err)
		h.renderUsers(w, r, statusFor(err), view.ErrorDialog(api.Message(err, "Could not delete the user.")))
		return
	}
	h.logger.InfoContext(r.Context(), "user deleted", applog.FieldUserID, id)
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.clients(r).GetGlobalAnalytics(r.Context())
	if h.unauthorized(w, r, err) {
		return
	}
	data := AnalyticsView{Analytics: analytics}
	if err != nil {
		h.logFailure(r, "global analytics unavailable", err)
		data.Error = api.Message(err, "Analytics are unavailable right now.")
	} else {
		data.Series = application.ChartSeries(analytics.Summary, application.ByMonth)
	}
	h.render(w, r, http.StatusOK, "admin_analytics", view.Page{Title: "Global analytics", Data: data})
}

// Transactions lists every user's transactions, optionally narrowed to one
// user and one type.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.TransactionFilter{UserID: q.Get("user"), Limit: oversightLimit}
	if t := q.Get("type"); domain.ValidType(t) {
		filter.Type = t
	}
	client := h.clients(r)

	data := TransactionsView{Filter: filter}
	users, err := client.ListUsers(r.Context())
	if h.unauthorized(w, r, err) {
		return
	}
	if err != nil {
		h.logFailure(r, "user listing failed", err)
	}
	data.Users = users

	items, err := client.ListAllTransactions(r.Context(), filter)
	if h.unauthorized(w, r, err) {
		return
	}
	if err != nil {
		h.logFailure(r, "transaction oversight failed", err)
		data.Error = api.Message(err, "Transactions are unavailable right now.")
	}
	data.Items = items
	h.render(w, r, http.StatusOK, "admin_transactions", view.Page{Title: "Transaction oversight", Data: data})
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if err != nil && api.IsUnauthorized(err) {
		h.signOut(w, r)
		return true
	}
	return false
}

func (h *Handler) logFailure(r *http.Request, what string, err error) {
	h.logger.WarnContext(r.Context(), what, applog.FieldPath, r.URL.Path, applog.FieldError, err.Error())
}

func selfID(r *http.Request) string {
	if s := session.FromContext(r.Context()); s != nil {
		if u := s.State().User; u != nil {
			return u.ID
		}
	}
	return ""
}

func statusFor(err error) int {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}
