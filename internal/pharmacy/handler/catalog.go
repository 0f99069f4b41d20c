package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/httputil"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// CatalogHandler handles medications, DCI confirmations, suppliers and the pharmacy profile
type CatalogHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(svc *service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  log,
	}
}

// ListMedications lists the catalog
func (h *CatalogHandler) ListMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := h.service.ListMedications(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, meds, &httputil.Meta{Total: len(meds)})
}

// GetMedication gets a medication by ID
func (h *CatalogHandler) GetMedication(w http.ResponseWriter, r *http.Request) {
	med, err := h.service.GetMedication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, med)
}

// SaveMedication creates a medication, or updates the one named in the path
func (h *CatalogHandler) SaveMedication(w http.ResponseWriter, r *http.Request) {
	var req service.MedicationRequest
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

	med, err := h.service.SaveMedication(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	if id == "" {
		httputil.Created(w, med)
		return
	}
	httputil.JSON(w, http.StatusOK, med)
}

// DeleteMedication deletes a medication
func (h *CatalogHandler) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMedication(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// MedicationRegime returns the prescription regime recorded for the medication's DCI
func (h *CatalogHandler) MedicationRegime(w http.ResponseWriter, r *http.Request) {
	conf, err := h.service.MedicationRegime(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, conf)
}

// ListConfirmations lists DCI confirmations
func (h *CatalogHandler) ListConfirmations(w http.ResponseWriter, r *http.Request) {
	confs, err := h.service.ListConfirmations(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, confs, &httputil.Meta{Total: len(confs)})
}

// SaveConfirmation creates or updates a DCI confirmation
func (h *CatalogHandler) SaveConfirmation(w http.ResponseWriter, r *http.Request) {
	var req service.ConfirmationRequest
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

	conf, err := h.service.SaveConfirmation(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	if id == "" {
		httputil.Created(w, conf)
		return
	}
	httputil.JSON(w, http.StatusOK, conf)
}

// DeleteConfirmation deletes a DCI confirmation
func (h *CatalogHandler) DeleteConfirmation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteConfirmation(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// ListSuppliers lists suppliers
func (h *CatalogHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, suppliers, &httputil.Meta{Total: len(suppliers)})
}

// SaveSupplier creates or updates a supplier
func (h *CatalogHandler) SaveSupplier(w http.ResponseWriter, r *http.Request) {
	var req service.SupplierRequest
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

	supplier, err := h.service.SaveSupplier(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	if id == "" {
		httputil.Created(w, supplier)
		return
	}
	httputil.JSON(w, http.StatusOK, supplier)
}

// DeleteSupplier deletes a supplier
func (h *CatalogHandler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSupplier(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// GetPharmacy returns the pharmacy profile printed on reports
func (h *CatalogHandler) GetPharmacy(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetPharmacy(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, info)
}

// SavePharmacy replaces the pharmacy profile
func (h *CatalogHandler) SavePharmacy(w http.ResponseWriter, r *http.Request) {
	var info domain.PharmacyInfo
	if err := httputil.DecodeJSON(r, &info); err != nil {
		httputil.Error(w, r, err)
		return
	}

	saved, err := h.service.SavePharmacy(r.Context(), &info)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, saved)
}
