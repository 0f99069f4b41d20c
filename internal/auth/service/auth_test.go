package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapsy/pharmapsy-backend/internal/auth/jwt"
	"github.com/pharmapsy/pharmapsy-backend/internal/auth/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/config"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

func newAuthService(t *testing.T, password string) *service.AuthService {
	t.Helper()
	hash, err := service.HashPassword(password)
	require.NoError(t, err)

	jwtCfg := &config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Hour, Issuer: "pharmapsy"}
	authCfg := &config.AuthConfig{Enabled: true, Username: "pharmacien", PasswordHash: hash}
	return service.NewAuthService(authCfg, jwt.NewManager(jwtCfg), logger.Nop())
}

// ============================================================================
// LOGIN TESTS
// ============================================================================

func TestLogin_Success(t *testing.T) {
	svc := newAuthService(t, "secret123")

	resp, err := svc.Login(context.Background(), &service.LoginRequest{Username: "pharmacien", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "pharmacien", resp.Username)
	assert.NotEmpty(t, resp.AccessToken)

	username, err := svc.Authenticate(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "pharmacien", username)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := newAuthService(t, "secret123")

	tests := []struct {
		name string
		req  service.LoginRequest
	}{
		{"wrong password", service.LoginRequest{Username: "pharmacien", Password: "nope"}},
		{"wrong username", service.LoginRequest{Username: "admin", Password: "secret123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), &tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
			assert.Equal(t, http.StatusUnauthorized, errors.StatusCode(err))
		})
	}
}

func TestLogin_NoPasswordConfigured(t *testing.T) {
	jwtCfg := &config.JWTConfig{Secret: "s", AccessExpiry: time.Hour, Issuer: "pharmapsy"}
	svc := service.NewAuthService(&config.AuthConfig{Enabled: true, Username: "pharmacien"}, jwt.NewManager(jwtCfg), logger.Nop())

	_, err := svc.Login(context.Background(), &service.LoginRequest{Username: "pharmacien", Password: ""})
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
}

func TestAuthenticate_Garbage(t *testing.T) {
	svc := newAuthService(t, "secret123")

	_, err := svc.Authenticate("garbage")
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

// ============================================================================
// PASSWORD HASHING TESTS
// ============================================================================

func TestHashPassword(t *testing.T) {
	hash, err := service.HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	_, err = service.HashPassword("abc")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
