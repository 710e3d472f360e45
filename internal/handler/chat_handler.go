package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/safetrack-backend-go/internal/chat"
	"github.com/jengzang/safetrack-backend-go/internal/metrics"
	"github.com/jengzang/safetrack-backend-go/internal/models"
)

type chatService interface {
	Handle(ctx context.Context, messages []models.ChatMessage) chat.Reply
}

// ChatHandler proxies chatbot conversations. Its responses use the bare
// {"response"} / {"error"} shape rather than the API envelope.
type ChatHandler struct {
	service chatService
}

func NewChatHandler(service chatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// Register mounts POST /chat on the given group
func (h *ChatHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/chat", h.Chat)
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// the service still reports a missing API key ahead of bad input
		req.Messages = nil
	}

	reply := h.service.Handle(c.Request.Context(), req.Messages)
	metrics.ChatRequestsTotal.WithLabelValues(strconv.Itoa(reply.Status)).Inc()

	if reply.Status == http.StatusOK {
		c.JSON(http.StatusOK, gin.H{"response": reply.Response})
		return
	}
	body := gin.H{"error": reply.Error}
	if reply.Details != "" {
		body["details"] = reply.Details
	}
	c.JSON(reply.Status, body)
}
