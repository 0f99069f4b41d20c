package handler

import (
	"fmt"
	"net/http"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/reconcile"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/report"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/httputil"
	"github.com/pharmapsy/pharmapsy-backend/pkg/i18n"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// ReportHandler handles stock reports
type ReportHandler struct {
	service *service.ReportService
	clock   service.Clock
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *service.ReportService, clock service.Clock, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		clock:   clock,
		logger:  log,
	}
}

func (h *ReportHandler) period(w http.ResponseWriter, r *http.Request) (reconcile.Period, bool) {
	p, err := PeriodFromQuery(r.URL.Query(), h.clock.Now())
	if err != nil {
		httputil.Error(w, r, err)
		return p, false
	}
	return p, true
}

// Summary returns the stock table of a period
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	rep, err := h.service.Summary(r.Context(), p, q.Get("search"), reconcile.ParseSort(q.Get("sort"), q.Get("dir")))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, rep, &httputil.Meta{Total: len(rep.Rows), Period: rep.Label})
}

// Breakdown returns the month by month movements of a period
func (h *ReportHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}

	rep, err := h.service.Breakdown(r.Context(), p, reconcile.ParseMode(r.URL.Query().Get("mode")))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, rep, &httputil.Meta{Total: len(rep.Rows), Period: rep.Label})
}

// AsOf returns the stock at the end of ?date, today by default
func (h *ReportHandler) AsOf(w http.ResponseWriter, r *http.Request) {
	cutoff := r.URL.Query().Get("date")
	if cutoff == "" {
		cutoff = domain.Today(h.clock.Now())
	}

	rep, err := h.service.AsOf(r.Context(), cutoff)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, rep, &httputil.Meta{Total: len(rep.Rows)})
}

// PV returns the printable inventory statement of a period
func (h *ReportHandler) PV(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}

	rep, err := h.service.PV(r.Context(), p, reconcile.ParseMode(r.URL.Query().Get("mode")))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, rep, &httputil.Meta{Total: len(rep.Rows), Period: rep.Label})
}

// Stats returns the dashboard figures
func (h *ReportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// Journal returns the entries received between ?from and ?to
func (h *ReportHandler) Journal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rep, err := h.service.Journal(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, rep, &httputil.Meta{Total: len(rep.Entries)})
}

// Workbook downloads the period as an xlsx file. Headers follow ?locale,
// then the request language.
func (h *ReportHandler) Workbook(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	locale := q.Get("locale")
	if !i18n.IsSupported(locale) {
		locale = i18n.GetLocaleFromContext(r.Context())
	}

	body, err := h.service.Workbook(r.Context(), p, reconcile.ParseMode(q.Get("mode")), locale)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Attachment(w, fmt.Sprintf("etat_stock_%s.xlsx", p.Year), report.ContentType, body)
}
