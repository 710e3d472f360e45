package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/geocoding"
	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/service"
	"github.com/jengzang/safetrack-backend-go/pkg/response"
)

type geocodingService interface {
	Reverse(ctx context.Context, p models.GeoPoint) (*models.Place, error)
	Search(ctx context.Context, query string, limit int) ([]models.Place, error)
}

// GeocodingHandler handles address lookups
type GeocodingHandler struct {
	service geocodingService
	logger  *zap.Logger
}

// NewGeocodingHandler creates a new geocoding handler
func NewGeocodingHandler(service geocodingService, logger *zap.Logger) *GeocodingHandler {
	return &GeocodingHandler{service: service, logger: logger}
}

// Register mounts the geocoding routes on an authenticated group
func (h *GeocodingHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/geocode/reverse", h.Reverse)
	rg.GET("/geocode/search", h.Search)
}

// Reverse resolves a coordinate to a place
// GET /api/v1/geocode/reverse?lat=..&lon=..
func (h *GeocodingHandler) Reverse(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		response.BadRequest(c, "lat and lon must be numbers")
		return
	}

	place, err := h.service.Reverse(c.Request.Context(), models.GeoPoint{Latitude: lat, Longitude: lon})
	if err != nil {
		h.writeLookupError(c, err)
		return
	}
	response.Success(c, place)
}

// Search resolves free text to candidate places
// GET /api/v1/geocode/search?q=..&limit=..
func (h *GeocodingHandler) Search(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(c, "limit must be an integer")
			return
		}
		limit = n
	}

	places, err := h.service.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.writeLookupError(c, err)
		return
	}
	response.Success(c, places)
}

func (h *GeocodingHandler) writeLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, geocoding.ErrInvalidQuery):
		response.BadRequest(c, err.Error())
	case errors.Is(err, geocoding.ErrNoResults):
		response.NotFound(c, err.Error())
	default:
		h.logger.Warn("geocoding lookup failed", zap.Error(err))
		response.Error(c, http.StatusBadGateway, "geocoding service unavailable")
	}
}
