package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

const msgInvalidMessages = "Invalid messages format"

// Sender sends a message with prior history to a model
type Sender interface {
	Configured() bool
	Send(ctx context.Context, history []models.ChatMessage, message string) (string, error)
}

// Reply is the outcome of a chat request mapped to an HTTP status
type Reply struct {
	Status   int
	Response string
	Error    string
	Details  string
}

// Service validates chat requests and maps model failures to statuses
type Service struct {
	sender Sender
}

// NewService creates a new chat service
func NewService(sender Sender) *Service {
	return &Service{sender: sender}
}

// Handle processes the messages of one chat request. The configuration check
// runs before any validation.
func (s *Service) Handle(ctx context.Context, messages []models.ChatMessage) Reply {
	if !s.sender.Configured() {
		return Reply{Status: http.StatusInternalServerError, Error: ErrNotConfigured.Error()}
	}
	if len(messages) == 0 || strings.TrimSpace(messages[len(messages)-1].Content) == "" {
		return Reply{Status: http.StatusBadRequest, Error: msgInvalidMessages}
	}

	last := messages[len(messages)-1]
	text, err := s.sender.Send(ctx, messages[:len(messages)-1], last.Content)
	if err != nil {
		return ErrorReply(err)
	}
	return Reply{Status: http.StatusOK, Response: text}
}

// ErrorReply maps a model error to the response status and message
func ErrorReply(err error) Reply {
	if errors.Is(err, ErrNotConfigured) {
		return Reply{Status: http.StatusInternalServerError, Error: ErrNotConfigured.Error()}
	}

	msg := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return Reply{Status: http.StatusUnauthorized, Error: "Invalid API key or API key error"}
		case http.StatusTooManyRequests:
			return Reply{Status: http.StatusTooManyRequests, Error: "Rate limit exceeded"}
		}
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "api key"):
		return Reply{Status: http.StatusUnauthorized, Error: "Invalid API key or API key error"}
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "quota"):
		return Reply{Status: http.StatusTooManyRequests, Error: "Rate limit exceeded"}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		msg = "chat service temporarily unavailable"
	}
	return Reply{Status: http.StatusInternalServerError, Error: "Failed to process chat request", Details: msg}
}
