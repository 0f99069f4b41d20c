package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/httputil"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// OrderHandler handles purchase orders
type OrderHandler struct {
	service *service.OrderService
	logger  *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc *service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  log,
	}
}

// List lists orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, orders, &httputil.Meta{Total: len(orders)})
}

// Get gets an order by ID
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// Save creates an order, or updates the one named in the path
func (h *OrderHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req service.OrderRequest
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

	order, err := h.service.Save(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	if id == "" {
		httputil.Created(w, order)
		return
	}
	httputil.JSON(w, http.StatusOK, order)
}

// Delete deletes an order
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// Receive books the order lines as entries. The body is optional.
func (h *OrderHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req service.ReceiveRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, r, err)
			return
		}
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	result, err := h.service.Receive(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
