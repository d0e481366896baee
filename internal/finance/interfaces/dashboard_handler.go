package interfaces

import (
	"net/http"
	"time"

	"github.com/sebuszqo/FinanceDashboard/internal/api"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/application"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
)

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d := h.dashboard.Load(r.Context(), h.clients(r))
	if d.Unauthorized(api.IsUnauthorized) {
		h.signOut(w, r)
		return
	}
	h.render(w, r, http.StatusOK, "dashboard", view.Page{Title: "Dashboard", Data: d})
}

type AnalyticsView struct {
	Period  application.Period
	Periods []application.Period
	Series  application.Series
	Totals  []domain.CategoryTotal
	Error   string
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	period := application.ParsePeriod(r.URL.Query().Get("period"))
	from, to := period.Range(h.now())
	client := h.clients(r)
	data := AnalyticsView{Period: period, Periods: application.Periods}

	summary, err := client.GetSummary(r.Context(), from, to)
	if h.failed(w, r, err) {
		return
	}
	status := http.StatusOK
	if err != nil {
		h.logFailure(r, "analytics summary failed", err)
		data.Error = api.Message(err, "Could not load analytics.")
		status = http.StatusBadGateway
	} else {
		data.Series = application.ChartSeries(summary, period.Granularity())
		if totals, err := client.GetCategoryTotals(r.Context(), from, to, ""); err == nil {
			data.Totals = totals
		}
	}
	h.render(w, r, status, "analytics", view.Page{Title: "Analytics", Data: data})
}

func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.clients(r).GetWallet(r.Context())
	if h.failed(w, r, err) {
		return
	}
	if err != nil {
		h.logFailure(r, "wallet failed", err)
		h.render(w, r, http.StatusBadGateway, "wallet", view.Page{
			Title:  "Wallet",
			Dialog: view.ErrorDialog(api.Message(err, "Could not load your wallet.")),
			Data:   &domain.Wallet{},
		})
		return
	}
	h.render(w, r, http.StatusOK, "wallet", view.Page{Title: "Wallet", Data: wallet})
}

func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.DateOnly, value)
	return t, err == nil
}
