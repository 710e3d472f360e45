package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/realtime"
	"github.com/jengzang/safetrack-backend-go/internal/service"
	"github.com/jengzang/safetrack-backend-go/internal/tracking"
	"github.com/jengzang/safetrack-backend-go/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type trackingService interface {
	Authorize(ctx context.Context, caretakerID, patientID string) error
	Start(ctx context.Context, caretakerID, patientID, mode string) (*tracking.Snapshot, error)
	Stop(ctx context.Context, caretakerID, patientID string) error
	Refresh(ctx context.Context, caretakerID, patientID string) (*tracking.Snapshot, error)
	Status(ctx context.Context, caretakerID, patientID string) (*tracking.Snapshot, error)
	History(ctx context.Context, caretakerID, patientID string) ([]models.LocationHistoryEntry, error)
	StoredHistory(ctx context.Context, caretakerID, patientID string, filter models.HistoryFilter) (*models.HistoryPage, error)
	ExportHistory(ctx context.Context, caretakerID, patientID string, filter models.HistoryFilter) ([]byte, error)
}

// TrackingHandler handles tracking sessions, history and live streams
type TrackingHandler struct {
	service  trackingService
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewTrackingHandler creates a tracking handler. A nil hub disables the
// stream endpoint.
func NewTrackingHandler(service trackingService, hub *realtime.Hub, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			// origin is not checked; the token is verified before upgrade
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Register mounts the tracking routes on an authenticated group
func (h *TrackingHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/patients/:id/tracking", h.Start)
	rg.DELETE("/patients/:id/tracking", h.Stop)
	rg.POST("/patients/:id/tracking/refresh", h.Refresh)
	rg.GET("/patients/:id/status", h.Status)
	rg.GET("/patients/:id/history", h.History)
	rg.GET("/patients/:id/history/stored", h.StoredHistory)
	rg.GET("/patients/:id/history/export", h.ExportHistory)
	rg.GET("/patients/:id/stream", h.Stream)
}

// Start handles POST /api/v1/patients/:id/tracking with an optional
// {"mode": "auto|device|simulated"} body
func (h *TrackingHandler) Start(c *gin.Context) {
	var req struct {
		Mode string `json:"mode" form:"mode"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid tracking request")
			return
		}
	} else {
		req.Mode = c.Query("mode")
	}

	snap, err := h.service.Start(c.Request.Context(), caretakerID(c), c.Param("id"), req.Mode)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, snap)
}

// Stop handles DELETE /api/v1/patients/:id/tracking
func (h *TrackingHandler) Stop(c *gin.Context) {
	if err := h.service.Stop(c.Request.Context(), caretakerID(c), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Refresh handles POST /api/v1/patients/:id/tracking/refresh
func (h *TrackingHandler) Refresh(c *gin.Context) {
	snap, err := h.service.Refresh(c.Request.Context(), caretakerID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, snap)
}

// Status handles GET /api/v1/patients/:id/status
func (h *TrackingHandler) Status(c *gin.Context) {
	snap, err := h.service.Status(c.Request.Context(), caretakerID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, snap)
}

// History handles GET /api/v1/patients/:id/history
func (h *TrackingHandler) History(c *gin.Context) {
	entries, err := h.service.History(c.Request.Context(), caretakerID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if entries == nil {
		entries = []models.LocationHistoryEntry{}
	}
	response.Success(c, entries)
}

// StoredHistory handles GET /api/v1/patients/:id/history/stored
func (h *TrackingHandler) StoredHistory(c *gin.Context) {
	var filter models.HistoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	page, err := h.service.StoredHistory(c.Request.Context(), caretakerID(c), c.Param("id"), filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, page)
}

// ExportHistory handles GET /api/v1/patients/:id/history/export
func (h *TrackingHandler) ExportHistory(c *gin.Context) {
	var filter models.HistoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	patientID := c.Param("id")
	data, err := h.service.ExportHistory(c.Request.Context(), caretakerID(c), patientID, filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="history-%s.xlsx"`, patientID))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// Stream handles GET /api/v1/patients/:id/stream. The connection
// receives the current snapshot, if any, followed by live updates.
func (h *TrackingHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, http.StatusServiceUnavailable, "live updates are disabled")
		return
	}
	patientID := c.Param("id")
	ctx := c.Request.Context()
	if err := h.service.Authorize(ctx, caretakerID(c), patientID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	snap, err := h.service.Status(ctx, caretakerID(c), patientID)
	if err != nil && !service.IsNoSession(err) {
		writeError(c, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", zap.String("patient_id", patientID), zap.Error(err))
		return
	}

	client := realtime.NewClient(h.hub, conn, patientID)
	if snap != nil {
		client.Send(realtime.Message{Type: realtime.MessageTypeStatus, PatientID: patientID, Data: snap})
	}
	client.Start()
}
