// Package service contains authentication business logic.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"orderbot_backend/internal/auth/repository"
	"orderbot_backend/platform/apperr"
	"orderbot_backend/platform/config"
	"orderbot_backend/platform/logger"
	"orderbot_backend/platform/phone"
)

const (
	accessTokenType  = "access"
	refreshTokenType = "refresh"
)

// TokenPair is an issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service provides user registration and token issuance.
type Service struct {
	repo repository.Repository
	cfg  config.AuthServiceConfig
	log  *logger.Logger
}

// New creates the auth service.
func New(repo repository.Repository, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log}
}

// Register creates a user with a password. Staff accounts are created by an
// admin; self-registration always gets the client role.
func (s *Service) Register(ctx context.Context, fio, rawPhone, password, role string) (repository.User, error) {
	normalized := phone.NormalizeE164(rawPhone)
	if normalized == "" {
		return repository.User{}, apperr.Validation("invalid phone number")
	}
	if len(password) < 8 {
		return repository.User{}, apperr.Validation("password must be at least 8 characters")
	}
	switch role {
	case repository.RoleClient, repository.RoleManager, repository.RoleAdmin:
	default:
		return repository.User{}, apperr.Validation("unknown role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return repository.User{}, err
	}

	user, err := s.repo.Create(ctx, repository.CreateUserParams{
		FIO:          fio,
		Phone:        normalized,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		s.log.AuthEvent("register", normalized, false, err.Error())
		return repository.User{}, err
	}

	s.log.AuthEvent("register", normalized, true, "")
	return user, nil
}

// SignIn verifies phone and password and issues a token pair.
func (s *Service) SignIn(ctx context.Context, rawPhone, password string) (TokenPair, error) {
	normalized := phone.NormalizeE164(rawPhone)
	if normalized == "" {
		return TokenPair{}, apperr.Unauthorized("invalid credentials")
	}

	user, err := s.repo.GetByPhone(ctx, normalized)
	if err != nil {
		s.log.AuthEvent("sign_in", normalized, false, "unknown phone")
		return TokenPair{}, apperr.Unauthorized("invalid credentials")
	}

	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.log.AuthEvent("sign_in", normalized, false, "bad password")
		return TokenPair{}, apperr.Unauthorized("invalid credentials")
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return TokenPair{}, err
	}
	s.log.AuthEvent("sign_in", normalized, true, "")
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. Refresh tokens
// are stateless JWTs signed with a separate secret.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.GetJWTRefreshSecret()), nil
	})
	if err != nil || !parsed.Valid {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token")
	}
	if tokenType, _ := claims["type"].(string); tokenType != refreshTokenType {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token")
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token")
	}
	return s.issueTokens(user)
}

// Me returns the authenticated user's profile.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (repository.User, error) {
	return s.repo.GetByID(ctx, userID)
}

// ListUsers returns users for the admin UI.
func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]repository.User, int, error) {
	return s.repo.List(ctx, role, limit, offset)
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role string) error {
	switch role {
	case repository.RoleClient, repository.RoleManager, repository.RoleAdmin:
	default:
		return apperr.Validation("unknown role")
	}
	return s.repo.UpdateRole(ctx, id, role)
}

// EnsureBotUser finds or provisions the customer behind a bot chat.
// Bot users have no password; they only ever act through the bot.
func (s *Service) EnsureBotUser(ctx context.Context, chatID int64, fio, rawPhone string) (repository.User, error) {
	if user, err := s.repo.GetByChatID(ctx, chatID); err == nil {
		return user, nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return repository.User{}, err
	}

	normalized := phone.NormalizeE164(rawPhone)
	if normalized == "" {
		return repository.User{}, apperr.Validation("invalid phone number")
	}
	if fio == "" {
		fio = "Клиент " + normalized
	}

	user, err := s.repo.Create(ctx, repository.CreateUserParams{
		ChatID: chatID,
		FIO:    fio,
		Phone:  normalized,
		Role:   repository.RoleClient,
	})
	if err != nil {
		// The phone may already belong to a web account; attach is not
		// automatic, the existing account wins.
		if apperr.Is(err, apperr.KindConflict) {
			return s.repo.GetByPhone(ctx, normalized)
		}
		return repository.User{}, err
	}
	return user, nil
}

// UserByChatID resolves the bot chat to a user, if registered.
func (s *Service) UserByChatID(ctx context.Context, chatID int64) (repository.User, error) {
	return s.repo.GetByChatID(ctx, chatID)
}

func (s *Service) issueTokens(user repository.User) (TokenPair, error) {
	access, err := s.signJWT(user, accessTokenType, s.cfg.GetAccessTokenTTL(), s.cfg.GetJWTAccessSecret())
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.signJWT(user, refreshTokenType, s.cfg.GetRefreshTokenTTL(), s.cfg.GetJWTRefreshSecret())
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) signJWT(user repository.User, tokenType string, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"type": tokenType,
		"role": user.Role,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
