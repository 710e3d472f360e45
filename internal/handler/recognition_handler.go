package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/dataurl"
	"github.com/jengzang/safetrack-backend-go/internal/recognition"
	"github.com/jengzang/safetrack-backend-go/internal/service"
	"github.com/jengzang/safetrack-backend-go/pkg/response"
)

type recognitionService interface {
	Identify(ctx context.Context, caretakerID, patientID string, img recognition.Image) (*service.IdentifyResult, error)
}

// RecognitionHandler handles the "who is this?" request
type RecognitionHandler struct {
	service recognitionService
	logger  *zap.Logger
}

func NewRecognitionHandler(service recognitionService, logger *zap.Logger) *RecognitionHandler {
	return &RecognitionHandler{service: service, logger: logger}
}

// Register mounts the recognition route on an authenticated group
func (h *RecognitionHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/patients/:id/identify", h.Identify)
}

// Identify handles POST /api/v1/patients/:id/identify. The image is a
// multipart "image" file or a JSON {"image": ...} holding a data URL or an
// http(s) URL.
func (h *RecognitionHandler) Identify(c *gin.Context) {
	img, ok := h.readImage(c)
	if !ok {
		return
	}
	res, err := h.service.Identify(c.Request.Context(), caretakerID(c), c.Param("id"), img)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, res)
}

func (h *RecognitionHandler) readImage(c *gin.Context) (recognition.Image, bool) {
	if isMultipart(c) {
		fh, err := c.FormFile("image")
		if err != nil {
			response.BadRequest(c, "image file is required")
			return recognition.Image{}, false
		}
		data, err := readUpload(fh)
		if err != nil {
			response.BadRequest(c, err.Error())
			return recognition.Image{}, false
		}
		return recognition.Image{Data: data}, true
	}

	var req struct {
		Image string `json:"image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "image is required")
		return recognition.Image{}, false
	}
	switch {
	case dataurl.IsDataURL(req.Image):
		return recognition.Image{DataURL: req.Image}, true
	case strings.HasPrefix(req.Image, "http://"), strings.HasPrefix(req.Image, "https://"):
		return recognition.Image{URL: req.Image}, true
	default:
		response.BadRequest(c, "image must be a data URL or an http(s) URL")
		return recognition.Image{}, false
	}
}
