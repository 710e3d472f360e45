package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/safetrack-backend-go/internal/chat"
	"github.com/jengzang/safetrack-backend-go/internal/models"
)

type mockChatService struct {
	handleFunc func(ctx context.Context, messages []models.ChatMessage) chat.Reply
}

func (m *mockChatService) Handle(ctx context.Context, messages []models.ChatMessage) chat.Reply {
	return m.handleFunc(ctx, messages)
}

func setupChatRouter(svc chatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewChatHandler(svc).Register(r.Group("/api"))
	return r
}

func TestChatHandler_Success(t *testing.T) {
	var got []models.ChatMessage
	svc := &mockChatService{
		handleFunc: func(_ context.Context, messages []models.ChatMessage) chat.Reply {
			got = messages
			return chat.Reply{Status: http.StatusOK, Response: "You are at home."}
		},
	}
	r := setupChatRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "Where am I?"}},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"You are at home."}`, w.Body.String())
	require.Len(t, got, 1)
	assert.Equal(t, "Where am I?", got[0].Content)
}

func TestChatHandler_ErrorShapeWithDetails(t *testing.T) {
	svc := &mockChatService{
		handleFunc: func(context.Context, []models.ChatMessage) chat.Reply {
			return chat.Reply{Status: http.StatusBadGateway, Error: "upstream failed", Details: "timeout"}
		},
	}
	r := setupChatRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"upstream failed","details":"timeout"}`, w.Body.String())
}

func TestChatHandler_MalformedBodyReachesService(t *testing.T) {
	called := false
	svc := &mockChatService{
		handleFunc: func(_ context.Context, messages []models.ChatMessage) chat.Reply {
			called = true
			assert.Nil(t, messages)
			return chat.Reply{Status: http.StatusBadRequest, Error: "Invalid messages format"}
		},
	}
	r := setupChatRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid messages format"}`, w.Body.String())
}
