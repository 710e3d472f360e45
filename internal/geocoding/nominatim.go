package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jengzang/safetrack-backend-go/internal/cache"
	"github.com/jengzang/safetrack-backend-go/internal/metrics"
	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/spatial"
)

var (
	ErrNoResults    = errors.New("no results found")
	ErrInvalidQuery = errors.New("invalid geocoding query")
)

// Config configures the Nominatim client
type Config struct {
	BaseURL   string
	UserAgent string
	CacheTTL  time.Duration
	Interval  time.Duration
}

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	AddressType string `json:"addresstype"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Error       string `json:"error"`
}

// Client performs reverse and forward geocoding against OSM Nominatim.
// Upstream requests are spaced by the configured interval and results cached.
type Client struct {
	httpClient *resty.Client
	limiter    *rate.Limiter
	kv         cache.KVStore
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewClient creates a Nominatim client
func NewClient(cfg Config, kv cache.KVStore, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(cfg.Interval), 1),
		kv:         kv,
		cacheTTL:   cfg.CacheTTL,
		logger:     logger,
	}
}

// Reverse returns the place at p
func (c *Client) Reverse(ctx context.Context, p models.GeoPoint) (*models.Place, error) {
	if !p.Valid() {
		return nil, ErrInvalidQuery
	}

	key := cache.ReverseGeocodeKey(spatial.CellToken(p, spatial.CellLevelStreet))
	var cached models.Place
	if err := cache.GetJSON(ctx, c.kv, key, &cached); err == nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("reverse", "cache").Inc()
		return &cached, nil
	}

	var raw nominatimPlace
	err := c.get(ctx, "/reverse", map[string]string{
		"format": "jsonv2",
		"lat":    strconv.FormatFloat(p.Latitude, 'f', 6, 64),
		"lon":    strconv.FormatFloat(p.Longitude, 'f', 6, 64),
	}, &raw)
	if err != nil {
		return nil, err
	}
	metrics.GeocodeRequestsTotal.WithLabelValues("reverse", "upstream").Inc()
	if raw.Error != "" {
		return nil, ErrNoResults
	}

	place, err := toPlace(raw)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, place)
	return &place, nil
}

// Search returns up to limit places matching query
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.Place, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if normalized == "" {
		return nil, ErrInvalidQuery
	}
	if limit < 1 || limit > 10 {
		limit = 5
	}

	key := cache.SearchGeocodeKey(fmt.Sprintf("%d:%s", limit, normalized))
	var cached []models.Place
	if err := cache.GetJSON(ctx, c.kv, key, &cached); err == nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("search", "cache").Inc()
		return cached, nil
	}

	var raw []nominatimPlace
	err := c.get(ctx, "/search", map[string]string{
		"format": "jsonv2",
		"q":      query,
		"limit":  strconv.Itoa(limit),
	}, &raw)
	if err != nil {
		return nil, err
	}
	metrics.GeocodeRequestsTotal.WithLabelValues("search", "upstream").Inc()

	places := make([]models.Place, 0, len(raw))
	for _, r := range raw {
		place, err := toPlace(r)
		if err != nil {
			c.logger.Debug("skipping unparseable search result", zap.Error(err))
			continue
		}
		places = append(places, place)
	}
	if len(places) == 0 {
		return nil, ErrNoResults
	}

	c.store(ctx, key, places)
	return places, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("geocoding rate limiter: %w", err)
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		c.logger.Error("Nominatim request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to call geocoding service: %w", err)
	}
	if !resp.IsSuccess() {
		c.logger.Error("Nominatim returned error",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("geocoding service returned status %d", resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	return nil
}

func (c *Client) store(ctx context.Context, key string, v any) {
	if err := cache.SetJSON(ctx, c.kv, key, v, c.cacheTTL); err != nil {
		c.logger.Warn("failed to cache geocoding result", zap.String("key", key), zap.Error(err))
	}
}

func toPlace(r nominatimPlace) (models.Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return models.Place{}, fmt.Errorf("invalid latitude %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return models.Place{}, fmt.Errorf("invalid longitude %q: %w", r.Lon, err)
	}

	placeType := r.AddressType
	if placeType == "" {
		placeType = r.Type
	}
	return models.Place{
		DisplayName: r.DisplayName,
		PlaceName:   r.Name,
		PlaceType:   placeType,
		Point:       models.GeoPoint{Latitude: lat, Longitude: lon},
	}, nil
}
