package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/breaker"
	"github.com/jengzang/safetrack-backend-go/internal/dataurl"
	"github.com/jengzang/safetrack-backend-go/internal/metrics"
)

// Failure messages carried in Result.Error
const (
	ErrMsgTimeout      = "timeout"
	ErrMsgNoCandidates = "no valid known face images"
	ErrMsgSourceImage  = "failed to load source image"
	ErrMsgUnavailable  = "recognition service unavailable"
	ErrMsgCanceled     = "request canceled"
	ErrMsgRequest      = "recognition request failed"
)

// Candidate is a known face to compare against
type Candidate struct {
	ID       string
	ImageURL string
}

// Image is the captured face. Exactly one field is expected to be set:
// a data URL, raw bytes, or a remote URL to fetch.
type Image struct {
	DataURL string
	Data    []byte
	URL     string
}

// Result is the outcome of a comparison. Failures are reported through
// Error rather than a Go error so callers always get a usable value.
type Result struct {
	IsMatch         bool    `json:"isMatch"`
	Confidence      float64 `json:"confidence"`
	MatchedID       string  `json:"matchedId,omitempty"`
	MatchedImageURL string  `json:"matchedImageUrl,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Config configures the face comparison client
type Config struct {
	Endpoint          string
	Timeout           time.Duration
	DefaultConfidence float64
	Breaker           breaker.Config
}

type compareRequest struct {
	CapturedImage string   `json:"capturedImage"`
	DatabaseURLs  []string `json:"databaseUrls"`
}

type compareResponse struct {
	MatchFound      bool     `json:"matchFound"`
	MatchedImageURL string   `json:"matchedImageUrl"`
	Confidence      *float64 `json:"confidence"`
}

// StatusError is returned for non-2xx responses from the comparison service
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("recognition service returned status %d", e.StatusCode)
}

// Client calls the remote face comparison endpoint
type Client struct {
	httpClient        *resty.Client
	endpoint          string
	timeout           time.Duration
	defaultConfidence float64
	breaker           *gobreaker.CircuitBreaker[*compareResponse]
	logger            *zap.Logger
}

// NewClient creates a face comparison client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = breaker.DefaultConfig("face-compare")
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient:        httpClient,
		endpoint:          cfg.Endpoint,
		timeout:           cfg.Timeout,
		defaultConfidence: cfg.DefaultConfidence,
		breaker:           breaker.New[*compareResponse](cfg.Breaker, logger),
		logger:            logger,
	}
}

// Compare asks the remote service whether img matches any candidate
func (c *Client) Compare(ctx context.Context, img Image, candidates []Candidate) Result {
	if len(candidates) == 0 {
		metrics.RecognitionRequestsTotal.WithLabelValues("no_candidates").Inc()
		return Result{IsMatch: false, Confidence: 0}
	}

	valid := c.filterCandidates(candidates)
	if len(valid) == 0 {
		metrics.RecognitionRequestsTotal.WithLabelValues("no_candidates").Inc()
		return failure(ErrMsgNoCandidates)
	}

	fetchCtx, cancelFetch := context.WithTimeout(ctx, c.timeout)
	source, err := c.normalizeImage(fetchCtx, img)
	cancelFetch()
	if err != nil {
		c.logger.Warn("failed to prepare source image", zap.Error(err))
		if msg := transportMessage(err); msg != "" {
			return c.fail(msg)
		}
		return c.fail(ErrMsgSourceImage)
	}

	urls := make([]string, len(valid))
	for i, cand := range valid {
		urls[i] = cand.ImageURL
	}

	c.logger.Info("calling face comparison service",
		zap.Int("candidate_count", len(urls)),
		zap.Int("dropped_count", len(candidates)-len(valid)),
	)

	postCtx, cancelPost := context.WithTimeout(ctx, c.timeout)
	defer cancelPost()
	resp, err := c.breaker.Execute(func() (*compareResponse, error) {
		return c.post(postCtx, compareRequest{CapturedImage: source, DatabaseURLs: urls})
	})
	if err != nil {
		c.logger.Error("face comparison failed", zap.Error(err))
		return c.fail(errorMessage(err))
	}

	if !resp.MatchFound {
		metrics.RecognitionRequestsTotal.WithLabelValues("no_match").Inc()
		return Result{IsMatch: false, Confidence: 0}
	}

	result := Result{
		IsMatch:         true,
		Confidence:      confidence(resp.Confidence, c.defaultConfidence),
		MatchedImageURL: resp.MatchedImageURL,
	}
	for _, cand := range valid {
		if cand.ImageURL == resp.MatchedImageURL {
			result.MatchedID = cand.ID
			break
		}
	}
	if result.MatchedID == "" {
		c.logger.Warn("matched image does not belong to any candidate",
			zap.String("matched_image_url", resp.MatchedImageURL))
	}

	metrics.RecognitionRequestsTotal.WithLabelValues("match").Inc()
	return result
}

func (c *Client) post(ctx context.Context, body compareRequest) (*compareResponse, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{StatusCode: resp.StatusCode()}
	}

	var out compareResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode recognition response: %w", err)
	}
	return &out, nil
}

func (c *Client) filterCandidates(candidates []Candidate) []Candidate {
	valid := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if !validImageURL(cand.ImageURL) {
			c.logger.Warn("dropping candidate with invalid image url",
				zap.String("candidate_id", cand.ID),
				zap.String("image_url", cand.ImageURL),
			)
			continue
		}
		valid = append(valid, cand)
	}
	return valid
}

func (c *Client) normalizeImage(ctx context.Context, img Image) (string, error) {
	switch {
	case img.DataURL != "":
		if _, _, err := dataurl.Decode(img.DataURL); err != nil {
			return "", err
		}
		return img.DataURL, nil
	case len(img.Data) > 0:
		return dataurl.Encode(img.Data), nil
	case img.URL != "":
		if dataurl.IsDataURL(img.URL) {
			return img.URL, nil
		}
		resp, err := c.httpClient.R().SetContext(ctx).Get(img.URL)
		if err != nil {
			return "", fmt.Errorf("failed to fetch source image: %w", err)
		}
		if !resp.IsSuccess() || len(resp.Body()) == 0 {
			return "", fmt.Errorf("failed to fetch source image: status %d", resp.StatusCode())
		}
		return dataurl.Encode(resp.Body()), nil
	default:
		return "", errors.New("no source image provided")
	}
}

func (c *Client) fail(msg string) Result {
	outcome := "error"
	if msg == ErrMsgTimeout {
		outcome = "timeout"
	}
	metrics.RecognitionRequestsTotal.WithLabelValues(outcome).Inc()
	return failure(msg)
}

func failure(msg string) Result {
	return Result{IsMatch: false, Confidence: 0, Error: msg}
}

func validImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func confidence(v *float64, fallback float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return fallback
	}
	return math.Max(0, math.Min(1, *v))
}

// transportMessage returns the message for deadline and cancellation errors
func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrMsgTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrMsgTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrMsgCanceled
	}
	return ""
}

func errorMessage(err error) string {
	if msg := transportMessage(err); msg != "" {
		return msg
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrMsgUnavailable
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	return ErrMsgRequest
}
