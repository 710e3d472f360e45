package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/safetrack-backend-go/internal/geocoding"
	"github.com/jengzang/safetrack-backend-go/internal/models"
)

type mockGeocodingService struct {
	reverseFunc func(ctx context.Context, p models.GeoPoint) (*models.Place, error)
	searchFunc  func(ctx context.Context, query string, limit int) ([]models.Place, error)
}

func (m *mockGeocodingService) Reverse(ctx context.Context, p models.GeoPoint) (*models.Place, error) {
	return m.reverseFunc(ctx, p)
}

func (m *mockGeocodingService) Search(ctx context.Context, query string, limit int) ([]models.Place, error) {
	return m.searchFunc(ctx, query, limit)
}

func TestGeocodingHandler_Reverse(t *testing.T) {
	var got models.GeoPoint
	svc := &mockGeocodingService{
		reverseFunc: func(_ context.Context, p models.GeoPoint) (*models.Place, error) {
			got = p
			return &models.Place{DisplayName: "City Hall", Point: p}, nil
		},
	}
	r := setupRouter(NewGeocodingHandler(svc, testLogger()))

	w := doJSON(t, r, http.MethodGet, "/api/v1/geocode/reverse?lat=40.71&lon=-74.01", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.GeoPoint{Latitude: 40.71, Longitude: -74.01}, got)
}

func TestGeocodingHandler_ReverseBadCoordinates(t *testing.T) {
	r := setupRouter(NewGeocodingHandler(&mockGeocodingService{}, testLogger()))

	w := doJSON(t, r, http.MethodGet, "/api/v1/geocode/reverse?lat=abc&lon=1", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGeocodingHandler_SearchErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no results", geocoding.ErrNoResults, http.StatusNotFound},
		{"invalid query", geocoding.ErrInvalidQuery, http.StatusBadRequest},
		{"upstream down", errors.New("connection reset"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockGeocodingService{
				searchFunc: func(context.Context, string, int) ([]models.Place, error) { return nil, tt.err },
			}
			r := setupRouter(NewGeocodingHandler(svc, testLogger()))

			w := doJSON(t, r, http.MethodGet, "/api/v1/geocode/search?q=park", nil)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestGeocodingHandler_SearchLimit(t *testing.T) {
	gotLimit := -1
	svc := &mockGeocodingService{
		searchFunc: func(_ context.Context, _ string, limit int) ([]models.Place, error) {
			gotLimit = limit
			return []models.Place{}, nil
		},
	}
	r := setupRouter(NewGeocodingHandler(svc, testLogger()))

	w := doJSON(t, r, http.MethodGet, "/api/v1/geocode/search?q=park&limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, gotLimit)

	w = doJSON(t, r, http.MethodGet, "/api/v1/geocode/search?q=park&limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
