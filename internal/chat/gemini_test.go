package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

func TestToGeminiRole(t *testing.T) {
	assert.Equal(t, "user", ToGeminiRole("user"))
	assert.Equal(t, "model", ToGeminiRole("assistant"))
	assert.Equal(t, "model", ToGeminiRole("system"))
	assert.Equal(t, "model", ToGeminiRole(""))
}

func TestGeminiClient_SendsHistoryAndLastMessage(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-pro:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"Maria"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(Config{APIKey: "k", Model: "gemini-1.5-pro", BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	text, err := c.Send(context.Background(), []models.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}, "who am I?")
	require.NoError(t, err)
	assert.Equal(t, "Hello Maria", text)

	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, "user", got.Contents[2].Role)
	assert.Equal(t, "who am I?", got.Contents[2].Parts[0].Text)
}

func TestGeminiClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted (e.g. check quota).","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(Config{APIKey: "k", Model: "m", BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	_, err := c.Send(context.Background(), nil, "hi")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Status)
}

func TestGeminiClient_NotConfigured(t *testing.T) {
	c := NewGeminiClient(Config{Model: "m", BaseURL: "http://unused", Timeout: time.Second}, zap.NewNop())
	assert.False(t, c.Configured())
	_, err := c.Send(context.Background(), nil, "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
