package service

import (
	"context"
	"strings"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

// Search result limits
const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 20
)

// GeocodingService validates lookups before they reach the geocoder
type GeocodingService struct {
	geocoder geocoder
}

func NewGeocodingService(g geocoder) *GeocodingService {
	return &GeocodingService{geocoder: g}
}

func (s *GeocodingService) Reverse(ctx context.Context, p models.GeoPoint) (*models.Place, error) {
	if !p.Valid() {
		return nil, invalidInput("latitude must be within [-90,90] and longitude within [-180,180]")
	}
	return s.geocoder.Reverse(ctx, p)
}

func (s *GeocodingService) Search(ctx context.Context, query string, limit int) ([]models.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalidInput("query is required")
	}
	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}
	return s.geocoder.Search(ctx, query, limit)
}
