package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/service"
	"github.com/jengzang/safetrack-backend-go/pkg/response"
)

type patientService interface {
	Create(ctx context.Context, caretakerID string, in service.CreatePatientInput) (*models.Patient, error)
	Get(ctx context.Context, caretakerID, id string) (*models.Patient, error)
	List(ctx context.Context, caretakerID string) ([]*models.Patient, error)
	Update(ctx context.Context, caretakerID, id string, in service.UpdatePatientInput) (*models.Patient, error)
	UpdateGeofence(ctx context.Context, caretakerID, id string, fence models.GeofenceConfig) (*models.Patient, error)
	SetPhoto(ctx context.Context, caretakerID, id, kind string, data []byte) (*models.Patient, error)
	DeletePhoto(ctx context.Context, caretakerID, id, kind string) (*models.Patient, error)
	Delete(ctx context.Context, caretakerID, id string) error
	Identity(ctx context.Context, caretakerID, id string) (*models.PatientIdentity, error)
}

// PatientHandler handles patient profile requests
type PatientHandler struct {
	service patientService
	logger  *zap.Logger
}

func NewPatientHandler(service patientService, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{service: service, logger: logger}
}

// Register mounts the patient routes on an authenticated group
func (h *PatientHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/patients", h.List)
	rg.POST("/patients", h.Create)
	rg.GET("/patients/:id", h.Get)
	rg.PATCH("/patients/:id", h.Update)
	rg.DELETE("/patients/:id", h.Delete)
	rg.PUT("/patients/:id/geofence", h.UpdateGeofence)
	rg.GET("/patients/:id/identity", h.Identity)
	rg.POST("/patients/:id/photos/:kind", h.UploadPhoto)
	rg.DELETE("/patients/:id/photos/:kind", h.DeletePhoto)
}

// List handles GET /api/v1/patients
func (h *PatientHandler) List(c *gin.Context) {
	patients, err := h.service.List(c.Request.Context(), caretakerID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if patients == nil {
		patients = []*models.Patient{}
	}
	response.Success(c, patients)
}

// Create handles POST /api/v1/patients
func (h *PatientHandler) Create(c *gin.Context) {
	var req service.CreatePatientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid patient data")
		return
	}
	p, err := h.service.Create(c.Request.Context(), caretakerID(c), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Created(c, p)
}

// Get handles GET /api/v1/patients/:id
func (h *PatientHandler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), caretakerID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, p)
}

// Update handles PATCH /api/v1/patients/:id
func (h *PatientHandler) Update(c *gin.Context) {
	var req service.UpdatePatientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid patient data")
		return
	}
	p, err := h.service.Update(c.Request.Context(), caretakerID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, p)
}

// Delete handles DELETE /api/v1/patients/:id
func (h *PatientHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), caretakerID(c), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateGeofence handles PUT /api/v1/patients/:id/geofence
func (h *PatientHandler) UpdateGeofence(c *gin.Context) {
	var fence models.GeofenceConfig
	if err := c.ShouldBindJSON(&fence); err != nil {
		response.BadRequest(c, "Invalid geofence")
		return
	}
	p, err := h.service.UpdateGeofence(c.Request.Context(), caretakerID(c), c.Param("id"), fence)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, p)
}

// Identity handles GET /api/v1/patients/:id/identity
func (h *PatientHandler) Identity(c *gin.Context) {
	id, err := h.service.Identity(c.Request.Context(), caretakerID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, id)
}

// UploadPhoto handles POST /api/v1/patients/:id/photos/:kind with either a
// multipart "photo" file or a JSON {"photo": dataURL} body
func (h *PatientHandler) UploadPhoto(c *gin.Context) {
	var data []byte
	if isMultipart(c) {
		fh, err := c.FormFile("photo")
		if err != nil {
			response.BadRequest(c, "photo file is required")
			return
		}
		if data, err = readUpload(fh); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	} else {
		var req struct {
			Photo string `json:"photo" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "photo is required")
			return
		}
		var err error
		if data, err = decodePhoto(req.Photo); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	p, err := h.service.SetPhoto(c.Request.Context(), caretakerID(c), c.Param("id"), c.Param("kind"), data)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, p)
}

// DeletePhoto handles DELETE /api/v1/patients/:id/photos/:kind
func (h *PatientHandler) DeletePhoto(c *gin.Context) {
	p, err := h.service.DeletePhoto(c.Request.Context(), caretakerID(c), c.Param("id"), c.Param("kind"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, p)
}
