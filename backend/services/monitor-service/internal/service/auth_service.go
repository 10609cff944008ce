package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/password"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/repository"
)

var (
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("auth: username already exists")
	// ErrInvalidCredentials represents login failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrUnauthenticated is returned for missing, invalid or revoked tokens.
	ErrUnauthenticated = errors.New("auth: not authenticated")
)

// RevocationStore remembers logged out token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthService contains registration, login and session checks.
type AuthService struct {
	repo      UserRepository
	hasher    password.Hasher
	tokenizer *TokenService
	revoked   RevocationStore
	logger    *zap.Logger
}

// NewAuthService builds AuthService.
func NewAuthService(repo UserRepository, hasher password.Hasher, tokenizer *TokenService, revoked RevocationStore, logger *zap.Logger) *AuthService {
	return &AuthService{
		repo:      repo,
		hasher:    hasher,
		tokenizer: tokenizer,
		revoked:   revoked,
		logger:    logger,
	}
}

// TokenTTL returns the lifetime of issued tokens.
func (s *AuthService) TokenTTL() time.Duration { return s.tokenizer.TTL() }

// Register creates a user and signs them in.
func (s *AuthService) Register(ctx context.Context, username, pass string) (string, *models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || pass == "" {
		return "", nil, invalid("username and password are required")
	}

	hash, err := s.hasher.Hash(pass)
	if err != nil {
		return "", nil, err
	}
	user := &models.User{Username: username, PasswordHash: hash, Role: "user"}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return "", nil, ErrUsernameTaken
		}
		return "", nil, err
	}

	token, err := s.tokenizer.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", nil, err
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return token, user, nil
}

// Login authenticates a user and produces a token.
func (s *AuthService) Login(ctx context.Context, username, pass string) (string, *models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || pass == "" {
		return "", nil, invalid("username and password are required")
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, pass); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokenizer.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Authenticate validates token and rejects revoked ones. A revocation store
// failure is logged and the token is accepted.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.tokenizer.ValidateToken(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if s.revoked != nil && claims.ID != "" {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("failed to check token revocation", zap.String("token_id", claims.ID), zap.Error(err))
		} else if revoked {
			return nil, ErrUnauthenticated
		}
	}
	return claims, nil
}

// Me returns the user behind a valid token.
func (s *AuthService) Me(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

// Logout revokes token for the rest of its lifetime. Invalid tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokenizer.ValidateToken(token)
	if err != nil || s.revoked == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.revoked.Revoke(ctx, claims.ID, ttl)
}
