package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/safetrack-backend-go/internal/auth"
	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/repository"
)

type caretakerRepository interface {
	Create(ctx context.Context, c *models.Caretaker) error
	GetByEmail(ctx context.Context, email string) (*models.Caretaker, error)
}

type tokenIssuer interface {
	Issue(caretakerID string) (string, time.Time, error)
}

// AuthResult is returned by Register and Login
type AuthResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Caretaker *models.Caretaker `json:"caretaker"`
}

// AuthService handles caretaker registration and login
type AuthService struct {
	repo   caretakerRepository
	tokens tokenIssuer
	now    func() time.Time
}

func NewAuthService(repo caretakerRepository, tokens tokenIssuer) *AuthService {
	return &AuthService{repo: repo, tokens: tokens, now: time.Now}
}

// MinPasswordLength is enforced on registration
const MinPasswordLength = 8

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a caretaker account and signs it in
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalidInput("a valid email is required")
	}
	if len(password) < MinPasswordLength {
		return nil, invalidInput(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	c := &models.Caretaker{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, err
	}

	return s.issue(c)
}

// Login verifies credentials and returns a fresh token
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	c, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !auth.CheckPassword(c.PasswordHash, password) {
		return nil, ErrUnauthorized
	}
	return s.issue(c)
}

func (s *AuthService) issue(c *models.Caretaker) (*AuthResult, error) {
	token, exp, err := s.tokens.Issue(c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresAt: exp, Caretaker: c}, nil
}
