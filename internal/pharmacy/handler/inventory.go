package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/httputil"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// InventoryHandler handles the movement ledgers, year baselines and expiry reports
type InventoryHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(svc *service.InventoryService, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: svc,
		logger:  log,
	}
}

func movementFilter(r *http.Request) service.MovementFilter {
	q := r.URL.Query()
	return service.MovementFilter{
		Year:   q.Get("year"),
		Month:  q.Get("month"),
		Search: q.Get("search"),
	}
}

// ListEntries lists entries, filtered by ?year, ?month and ?search
func (h *InventoryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListEntries(r.Context(), movementFilter(r))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, &httputil.Meta{Total: len(entries)})
}

// RecordEntries saves an entries form
func (h *InventoryHandler) RecordEntries(w http.ResponseWriter, r *http.Request) {
	var req service.EntryBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	entries, err := h.service.RecordEntries(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, entries)
}

// DeleteEntry deletes one entry line
func (h *InventoryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// ListExits lists exits, filtered by ?year, ?month and ?search
func (h *InventoryHandler) ListExits(w http.ResponseWriter, r *http.Request) {
	exits, err := h.service.ListExits(r.Context(), movementFilter(r))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, exits, &httputil.Meta{Total: len(exits)})
}

// RecordExits saves an exits form
func (h *InventoryHandler) RecordExits(w http.ResponseWriter, r *http.Request) {
	var req service.ExitBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	exits, err := h.service.RecordExits(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, exits)
}

// DeleteExit deletes one exit line
func (h *InventoryHandler) DeleteExit(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteExit(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// ListInitialStocks lists the year baselines
func (h *InventoryHandler) ListInitialStocks(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.ListInitialStocks(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, docs, &httputil.Meta{Total: len(docs)})
}

// SaveInitialStock creates or updates a year baseline
func (h *InventoryHandler) SaveInitialStock(w http.ResponseWriter, r *http.Request) {
	var req service.InitialStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if id != "" {
		req.ID = id
	}

	doc, err := h.service.SaveInitialStock(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	if id == "" {
		httputil.Created(w, doc)
		return
	}
	httputil.JSON(w, http.StatusOK, doc)
}

// DeleteInitialStock deletes a year baseline
func (h *InventoryHandler) DeleteInitialStock(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteInitialStock(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// ListPeremptions lists expiry reports
func (h *InventoryHandler) ListPeremptions(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.ListPeremptions(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, reports, &httputil.Meta{Total: len(reports)})
}

// GetPeremption gets an expiry report by ID
func (h *InventoryHandler) GetPeremption(w http.ResponseWriter, r *http.Request) {
	per, err := h.service.GetPeremption(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, per)
}

// SavePeremption saves an expiry report and resynchronizes its exits
func (h *InventoryHandler) SavePeremption(w http.ResponseWriter, r *http.Request) {
	var req service.PeremptionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if id != "" {
		req.ID = id
	}

	result, err := h.service.SavePeremption(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	if id == "" {
		httputil.Created(w, result)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

// DeletePeremption deletes an expiry report with the exits it created
func (h *InventoryHandler) DeletePeremption(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.DeletePeremption(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"exitsRemoved": removed})
}
