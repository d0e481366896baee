package interfaces

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/sebuszqo/FinanceDashboard/internal/api"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/application"
	financeErrors "github.com/sebuszqo/FinanceDashboard/internal/finance/errors"
	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
)

// ClientFunc returns the backend client acting for the request's browser.
type ClientFunc func(r *http.Request) application.FinanceAPI

type RenderFunc func(w http.ResponseWriter, r *http.Request, status int, name string, page view.Page)

type Handler struct {
	clients   ClientFunc
	dashboard *application.DashboardService
	render    RenderFunc
	signOut   http.HandlerFunc
	logger    *applog.Logger
	now       func() time.Time
}

// NewHandler builds the finance pages. signOut is invoked when the backend
// rejects the stored credentials mid-session.
func NewHandler(
	clients ClientFunc,
	dashboard *application.DashboardService,
	render RenderFunc,
	signOut http.HandlerFunc,
	logger *applog.Logger,
) *Handler {
	if clients == nil || dashboard == nil {
		log.Fatal("Client and dashboard service must not be nil")
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
		clients:   clients,
		dashboard: dashboard,
		render:    render,
		signOut:   signOut,
		logger:    logger.WithComponent(applog.ComponentFinance),
		now:       time.Now,
	}
}

// RegisterRoutes mounts every finance page on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /home", h.Dashboard)
	mux.HandleFunc("GET /transactions", h.Transactions)
	mux.HandleFunc("POST /transactions", h.CreateTransaction)
	mux.HandleFunc("POST /transactions/{id}/delete", h.DeleteTransaction)
	mux.HandleFunc("GET /budgets", h.Budgets)
	mux.HandleFunc("POST /budgets", h.CreateBudget)
	mux.HandleFunc("POST /budgets/{id}/delete", h.DeleteBudget)
	mux.HandleFunc("GET /categories", h.Categories)
	mux.HandleFunc("POST /categories", h.CreateCategory)
	mux.HandleFunc("GET /analytics", h.Analytics)
	mux.HandleFunc("GET /wallet", h.Wallet)
}

// failed handles an error from the backend. It reports true when the
// response has been written.
func (h *Handler) failed(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return false
	}
	if api.IsUnauthorized(err) {
		h.signOut(w, r)
		return true
	}
	return false
}

// dialogFor turns an action error into the dialog shown above the form.
func dialogFor(err error, fallback string) *view.Dialog {
	var ve *financeErrors.ValidationErrors
	if errors.As(err, &ve) {
		return view.ErrorDialog("Please correct the highlighted fields.", ve.Messages()...)
	}
	if financeErrors.IsValidationError(err) {
		return view.ErrorDialog(err.Error())
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
		return view.ErrorDialog(apiErr.Message, apiErr.Details...)
	}
	return view.ErrorDialog(api.Message(err, fallback))
}

func statusFor(err error) int {
	if financeErrors.IsValidationError(err) || financeErrors.IsValidationErrors(err) {
		return http.StatusUnprocessableEntity
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func (h *Handler) logFailure(r *http.Request, what string, err error) {
	h.logger.WarnContext(r.Context(), what, applog.FieldPath, r.URL.Path, applog.FieldError, err.Error())
}

// seeOther completes a successful form post so a reload does not resubmit it.
func seeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}
