package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/openshelf/openshelf/internal/dto"
	"github.com/openshelf/openshelf/internal/model"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/openshelf/openshelf/pkg/apperror"
	"github.com/openshelf/openshelf/pkg/ratelimiter"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService interface {
	Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthResponse, error)
	Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error)
	GetProfile(ctx context.Context, username string) (*dto.ProfileResponse, error)
	GetMe(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

type authService struct {
	userRepo         repository.UserRepository
	bootstrapModName string
	jwtSecret        string
	redisClient      *redis.Client
}

func NewAuthService(userRepo repository.UserRepository, bootstrapModName string, redisClient *redis.Client) AuthService {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "12345"
	}

	return &authService{
		userRepo:         userRepo,
		bootstrapModName: bootstrapModName,
		jwtSecret:        secret,
		redisClient:      redisClient,
	}
}

func (s *authService) Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthResponse, error) {
	if _, err := s.userRepo.FindByEmail(ctx, input.Email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", apperror.ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if _, err := s.userRepo.FindByUsername(ctx, input.Username); err == nil {
		return nil, fmt.Errorf("%w: username already taken", apperror.ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		Status:       model.UserStatusActive,
	}

	// The very first account, or the configured bootstrap moderator handle,
	// starts with full moderation capabilities.
	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 || (s.bootstrapModName != "" && input.Username == s.bootstrapModName) {
		user.IsMod = true
		user.Capabilities = model.FullCapabilities()
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &dto.AuthResponse{Token: token, User: user}, nil
}

func (s *authService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", apperror.ErrUnauthorized)
		}
		return nil, err
	}

	// Admission window per account, ahead of the bcrypt compare, to slow
	// guessing against a known username.
	limit := ratelimiter.GetDurationFromEnv("RATE_LIMIT_LOGIN", 1*time.Second)
	allowed, err := ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, user.ID, ratelimiter.ScopeLogin, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, user.ID, ratelimiter.ScopeLogin)
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("too many login attempts. Please wait %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", apperror.ErrUnauthorized)
	}

	if user.Status == model.UserStatusBlocked {
		return nil, fmt.Errorf("%w: account is blocked", apperror.ErrForbidden)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &dto.AuthResponse{Token: token, User: user}, nil
}

func (s *authService) GetProfile(ctx context.Context, username string) (*dto.ProfileResponse, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperror.ErrNotFound, username)
		}
		return nil, err
	}

	return &dto.ProfileResponse{
		ID:         user.ID.String(),
		Username:   user.Username,
		Reputation: user.Reputation,
		IsMod:      user.IsMod,
		AvatarURL:  user.AvatarURL,
		CreatedAt:  user.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *authService) GetMe(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user "+userID.String())
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) issueToken(user *model.User) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
