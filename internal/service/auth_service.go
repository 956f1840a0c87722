package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"familydose/internal/apperr"
	"familydose/internal/models"
	"familydose/internal/repository"
	"familydose/internal/security"
)

// Session is the result of a successful login
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// AuthService checks credentials and issues identity tokens for the HTTP boundary
type AuthService struct {
	users  *repository.UserRepository
	tokens *security.TokenIssuer
	log    *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users *repository.UserRepository, tokens *security.TokenIssuer, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		log:    logger,
	}
}

// Login verifies a password and issues a token.
// Unknown ids and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, id, password string) (*Session, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil || !security.CheckPassword(user.PasswordHash, password) {
		s.log.Info("login failed", zap.String("user_id", id))
		return nil, apperr.Invalidf("invalid id or password")
	}

	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// Authenticate resolves a bearer token into the caller's identity
func (s *AuthService) Authenticate(token string) (models.Actor, string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return models.Actor{}, "", err
	}
	return claims.Actor(), claims.Connect, nil
}
