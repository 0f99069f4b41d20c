package handler

import (
	"net/http"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/httputil"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// SettingsHandler handles user preferences
type SettingsHandler struct {
	service *service.SettingsService
	logger  *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(svc *service.SettingsService, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: svc,
		logger:  log,
	}
}

// Get returns the preferences with defaults applied
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Get(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, settings)
}

// Update applies a partial update
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch service.SettingsPatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&patch); err != nil {
		httputil.Error(w, r, err)
		return
	}

	settings, err := h.service.Update(r.Context(), &patch)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, settings)
}
