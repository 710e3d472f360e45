package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/breaker"
	"github.com/jengzang/safetrack-backend-go/internal/models"
)

var (
	ErrNotConfigured = errors.New("API key not configured")
	ErrEmptyReply    = errors.New("empty response from model")
)

// APIError is a non-2xx response from the Gemini API
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API error %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Config configures the Gemini client
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GeminiClient sends chat turns to the Gemini generateContent API
type GeminiClient struct {
	httpClient *resty.Client
	apiKey     string
	model      string
	breaker    *gobreaker.CircuitBreaker[string]
	logger     *zap.Logger
}

// NewGeminiClient creates a Gemini client
func NewGeminiClient(cfg Config, logger *zap.Logger) *GeminiClient {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &GeminiClient{
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		breaker:    breaker.New[string](breaker.DefaultConfig("gemini"), logger),
		logger:     logger,
	}
}

// Configured reports whether an API key is present
func (c *GeminiClient) Configured() bool {
	return c.apiKey != ""
}

// ToGeminiRole maps a chat role to a Gemini role: "user" stays "user",
// everything else becomes "model"
func ToGeminiRole(role string) string {
	if role == "user" {
		return "user"
	}
	return "model"
}

// Send starts a conversation with history and sends message as the next user turn
func (c *GeminiClient) Send(ctx context.Context, history []models.ChatMessage, message string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	contents := make([]content, 0, len(history)+1)
	for _, m := range history {
		contents = append(contents, content{Role: ToGeminiRole(m.Role), Parts: []part{{Text: m.Content}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: message}}})

	return c.breaker.Execute(func() (string, error) {
		return c.generate(ctx, contents)
	})
}

func (c *GeminiClient) generate(ctx context.Context, contents []content) (string, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", c.apiKey).
		SetBody(generateRequest{Contents: contents}).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", c.model))
	if err != nil {
		c.logger.Error("Gemini API call failed", zap.Error(err))
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}

	if !resp.IsSuccess() {
		apiErr := &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(string(resp.Body()))}
		var er errorResponse
		if json.Unmarshal(resp.Body(), &er) == nil && er.Error.Message != "" {
			apiErr.Message = er.Error.Message
			apiErr.Status = er.Error.Status
		}
		c.logger.Error("Gemini API returned error",
			zap.Int("status_code", apiErr.StatusCode),
			zap.String("status", apiErr.Status),
			zap.String("msg", apiErr.Message),
		)
		return "", apiErr
	}

	var out generateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal Gemini response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", ErrEmptyReply
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
