package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/safetrack-backend-go/internal/auth"
	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/repository"
)

type mockCaretakerRepo struct {
	byEmail map[string]*models.Caretaker
}

func (m *mockCaretakerRepo) Create(_ context.Context, c *models.Caretaker) error {
	if _, ok := m.byEmail[c.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.byEmail[c.Email] = c
	return nil
}

func (m *mockCaretakerRepo) GetByEmail(_ context.Context, email string) (*models.Caretaker, error) {
	c, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func newAuthService() (*AuthService, *auth.TokenManager) {
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	return NewAuthService(&mockCaretakerRepo{byEmail: map[string]*models.Caretaker{}}, tokens), tokens
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	svc, tokens := newAuthService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, "  Carer@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "carer@example.com", reg.Caretaker.Email)
	assert.NotEqual(t, "correct horse", reg.Caretaker.PasswordHash)

	id, err := tokens.Parse(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.Caretaker.ID, id)

	login, err := svc.Login(ctx, "carer@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, reg.Caretaker.ID, login.Caretaker.ID)
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, "a@b.c", "short")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, "a@b.c", "long enough")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "A@B.C", "long enough")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuthService_Login_Failures(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()
	_, err := svc.Register(ctx, "a@b.c", "long enough")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@b.c", "wrong password")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = svc.Login(ctx, "nobody@b.c", "long enough")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}
