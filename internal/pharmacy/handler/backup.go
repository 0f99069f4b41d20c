package handler

import (
	"net/http"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/httputil"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// BackupHandler handles database export and import
type BackupHandler struct {
	service *service.BackupService
	clock   service.Clock
	logger  *logger.Logger
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(svc *service.BackupService, clock service.Clock, log *logger.Logger) *BackupHandler {
	return &BackupHandler{
		service: svc,
		clock:   clock,
		logger:  log,
	}
}

// Export downloads the whole database as BKP<ddmmyyyy>.json
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	blob, err := h.service.Export(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Attachment(w, service.FileName(h.clock.Now()), "application/json", blob)
}

// Import replaces the database with the uploaded backup document
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	blob, err := httputil.ReadBody(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	safety, err := h.service.Import(r.Context(), blob)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	h.logger.Info().
		Str("username", httputil.GetUsername(r.Context())).
		Str("safety_file", safety).
		Msg("database imported")

	httputil.JSON(w, http.StatusOK, map[string]string{"safetyFile": safety})
}

// Run writes today's backup file on the server
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	path, err := h.service.WriteBackup(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, map[string]string{"file": path})
}
