package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapsy/pharmapsy-backend/internal/auth/jwt"
	"github.com/pharmapsy/pharmapsy-backend/internal/auth/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/config"
	"github.com/pharmapsy/pharmapsy-backend/pkg/httputil"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

func newHandler(t *testing.T, enabled bool) *AuthHandler {
	t.Helper()
	hash, err := service.HashPassword("secret123")
	require.NoError(t, err)

	jwtCfg := &config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Hour, Issuer: "pharmapsy"}
	authCfg := &config.AuthConfig{Enabled: enabled, Username: "pharmacien", PasswordHash: hash}
	return NewAuthHandler(service.NewAuthService(authCfg, jwt.NewManager(jwtCfg), logger.Nop()), logger.Nop())
}

func login(t *testing.T, h *AuthHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body)))
	return rec
}

func TestLoginThenMe(t *testing.T) {
	h := newHandler(t, true)

	rec := login(t, h, `{"username":"pharmacien","password":"secret123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data service.LoginResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Data.AccessToken)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Data.AccessToken)
	rec = httptest.NewRecorder()
	h.Authenticate(http.HandlerFunc(h.Me)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"pharmacien"`)
}

func TestLogin_BadRequests(t *testing.T) {
	h := newHandler(t, true)

	assert.Equal(t, http.StatusBadRequest, login(t, h, `{`).Code)
	assert.Equal(t, http.StatusBadRequest, login(t, h, `{"username":"pharmacien"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(t, h, `{"username":"pharmacien","password":"wrong"}`).Code)
}

func TestAuthenticate_Rejects(t *testing.T) {
	h := newHandler(t, true)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "UNAUTHORIZED"},
		{"wrong scheme", "Basic abc", "UNAUTHORIZED"},
		{"invalid token", "Bearer abc", "TOKEN_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/medications", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.Authenticate(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var resp httputil.Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestAuthenticate_Disabled(t *testing.T) {
	h := newHandler(t, false)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httputil.GetUsername(r.Context())
	})
	h.Authenticate(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "local", seen)
}
