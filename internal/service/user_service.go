package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"procurement/internal/apperr"
	"procurement/internal/model"
	"procurement/internal/repository"
)

// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid email or password")

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// UserService authenticates reviewers and issues access tokens.
type UserService interface {
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
}

type userService struct {
	repo     repository.UserRepository
	audit    repository.AuditRepository
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewUserService(repo repository.UserRepository, audit repository.AuditRepository, secret []byte, tokenTTL time.Duration) UserService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &userService{repo: repo, audit: audit, secret: secret, tokenTTL: tokenTTL, now: time.Now}
}

func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Service("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"name": user.Username,
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, apperr.Service("failed to generate token", err)
	}

	details, _ := json.Marshal(map[string]string{"email": user.Email})
	if err := s.audit.Log(ctx, &model.AuditLog{
		ActorID:   user.ID.String(),
		ActorName: user.Username,
		Action:    model.ActionLogin,
		EntityID:  user.ID.String(),
		Details:   string(details),
	}); err != nil {
		return nil, apperr.Service("failed to write audit log", err)
	}

	return &TokenResponse{Token: tokenString, ExpiresAt: expiresAt.UTC()}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "", "user not found")
	}
	if err != nil {
		return nil, apperr.Service("failed to load user", err)
	}
	return mapToResponse(user), nil
}
