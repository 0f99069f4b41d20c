package handler

import (
	"net/http"
	"strings"

	"github.com/pharmapsy/pharmapsy-backend/internal/auth/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/httputil"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	service *service.AuthService
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *service.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  log,
	}
}

// Login handles operator login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	response, err := h.service.Login(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, response)
}

// Me returns the authenticated operator
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	username := httputil.GetUsername(r.Context())
	if username == "" {
		httputil.Error(w, r, errors.Unauthorized("not authenticated"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"username":     username,
		"auth_enabled": h.service.Enabled(),
	})
}

// Authenticate requires a valid bearer token and stores the username in the
// request context. With authentication disabled every request runs as the
// local operator.
func (h *AuthHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.service.Enabled() {
			next.ServeHTTP(w, r.WithContext(httputil.WithUsername(r.Context(), "local")))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.Error(w, r, errors.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.Error(w, r, errors.Unauthorized("invalid authorization header format"))
			return
		}

		username, err := h.service.Authenticate(parts[1])
		if err != nil {
			h.logger.Debug().Err(err).Msg("token validation failed")
			httputil.Error(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(httputil.WithUsername(r.Context(), username)))
	})
}
