package service

import (
	"context"
	"crypto/subtle"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pharmapsy/pharmapsy-backend/internal/auth/jwt"
	"github.com/pharmapsy/pharmapsy-backend/pkg/config"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// AuthService authenticates the operator account
type AuthService struct {
	config     *config.AuthConfig
	jwtManager *jwt.Manager
	logger     *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(cfg *config.AuthConfig, jwtManager *jwt.Manager, log *logger.Logger) *AuthService {
	return &AuthService{
		config:     cfg,
		jwtManager: jwtManager,
		logger:     log.WithComponent("auth"),
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
	Username    string    `json:"username"`
}

// Enabled reports whether requests must carry a token
func (s *AuthService) Enabled() bool {
	return s.config.Enabled
}

// Login checks the credentials against the configured account and issues a token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if !s.checkCredentials(req.Username, req.Password) {
		s.logger.Warn().Str("username", req.Username).Msg("failed login attempt")
		return nil, errors.InvalidCredentials()
	}

	token, err := s.jwtManager.Generate(s.config.Username)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to sign token")
		return nil, errors.Internal("failed to issue token")
	}

	s.logger.Info().Str("username", s.config.Username).Msg("operator logged in")

	return &LoginResponse{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt,
		TokenType:   token.TokenType,
		Username:    s.config.Username,
	}, nil
}

// Authenticate validates a bearer token and returns the username it carries
func (s *AuthService) Authenticate(token string) (string, error) {
	claims, err := s.jwtManager.Validate(token)
	if err != nil {
		return "", err
	}
	if claims.Username != s.config.Username {
		return "", errors.TokenInvalid()
	}
	return claims.Username, nil
}

func (s *AuthService) checkCredentials(username, password string) bool {
	if s.config.PasswordHash == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.config.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(s.config.PasswordHash), []byte(password)) == nil
	return userOK && passOK
}

// HashPassword returns the bcrypt hash to store in PHARMAPSY_AUTH_PASSWORD_HASH
func HashPassword(password string) (string, error) {
	if len(password) < 6 {
		return "", errors.Validation(map[string]string{"password": "must be at least 6 characters"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
