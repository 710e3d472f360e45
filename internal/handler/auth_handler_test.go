package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/service"
)

type mockAuthService struct {
	registerFunc func(ctx context.Context, email, password string) (*service.AuthResult, error)
	loginFunc    func(ctx context.Context, email, password string) (*service.AuthResult, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password string) (*service.AuthResult, error) {
	return m.registerFunc(ctx, email, password)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	return m.loginFunc(ctx, email, password)
}

func TestAuthHandler_SignUp(t *testing.T) {
	svc := &mockAuthService{
		registerFunc: func(_ context.Context, email, _ string) (*service.AuthResult, error) {
			return &service.AuthResult{Token: "tok", Caretaker: &models.Caretaker{ID: "c1", Email: email}}, nil
		},
	}
	r := setupRouter(NewAuthHandler(svc, testLogger()))

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": "a@example.com", "password": "longenough",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var res service.AuthResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &res))
	assert.Equal(t, "tok", res.Token)
}

func TestAuthHandler_SignUpMissingFields(t *testing.T) {
	r := setupRouter(NewAuthHandler(&mockAuthService{}, testLogger()))

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "a@example.com"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_SignUpDuplicate(t *testing.T) {
	svc := &mockAuthService{
		registerFunc: func(context.Context, string, string) (*service.AuthResult, error) {
			return nil, service.ErrConflict
		},
	}
	r := setupRouter(NewAuthHandler(svc, testLogger()))

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": "a@example.com", "password": "longenough",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandler_LoginRejected(t *testing.T) {
	svc := &mockAuthService{
		loginFunc: func(context.Context, string, string) (*service.AuthResult, error) {
			return nil, service.ErrUnauthorized
		},
	}
	r := setupRouter(NewAuthHandler(svc, testLogger()))

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "a@example.com", "password": "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, service.ErrUnauthorized.Error(), decodeEnvelope(t, w).Message)
}
