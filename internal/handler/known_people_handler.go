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

type knownPeopleService interface {
	List(ctx context.Context, caretakerID, patientID string) ([]*models.KnownPerson, error)
	Add(ctx context.Context, caretakerID, patientID string, in service.PersonInput) (*models.KnownPerson, error)
	Update(ctx context.Context, caretakerID, patientID, personID string, in service.UpdatePersonInput) (*models.KnownPerson, error)
	Delete(ctx context.Context, caretakerID, patientID, personID string) error
	ReplaceAll(ctx context.Context, caretakerID, patientID string, inputs []service.PersonInput) ([]*models.KnownPerson, error)
	EmergencyContacts(ctx context.Context, caretakerID, patientID string) ([]*models.KnownPerson, error)
}

// personRequest is a roster entry with an optional photo data URL. Multipart
// submissions carry the photo as a file instead.
type personRequest struct {
	Name               string `json:"name" form:"name"`
	Relationship       string `json:"relationship" form:"relationship"`
	Phone              string `json:"phone" form:"phone"`
	Address            string `json:"address" form:"address"`
	Details            string `json:"details" form:"details"`
	IsEmergencyContact bool   `json:"isEmergencyContact" form:"isEmergencyContact"`
	Photo              string `json:"photo" form:"-"`
}

func (r personRequest) input() (service.PersonInput, error) {
	photo, err := decodePhoto(r.Photo)
	if err != nil {
		return service.PersonInput{}, err
	}
	return service.PersonInput{
		Name:               r.Name,
		Relationship:       r.Relationship,
		Phone:              r.Phone,
		Address:            r.Address,
		Details:            r.Details,
		IsEmergencyContact: r.IsEmergencyContact,
		Photo:              photo,
	}, nil
}

type updatePersonRequest struct {
	service.UpdatePersonInput
	Photo string `json:"photo"`
}

// KnownPeopleHandler handles a patient's roster of known people
type KnownPeopleHandler struct {
	service knownPeopleService
	logger  *zap.Logger
}

func NewKnownPeopleHandler(service knownPeopleService, logger *zap.Logger) *KnownPeopleHandler {
	return &KnownPeopleHandler{service: service, logger: logger}
}

// Register mounts the roster routes on an authenticated group
func (h *KnownPeopleHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/patients/:id/people", h.List)
	rg.POST("/patients/:id/people", h.Add)
	rg.PUT("/patients/:id/people", h.ReplaceAll)
	rg.PATCH("/patients/:id/people/:personId", h.Update)
	rg.DELETE("/patients/:id/people/:personId", h.Delete)
	rg.GET("/patients/:id/emergency-contacts", h.EmergencyContacts)
}

func (h *KnownPeopleHandler) respondList(c *gin.Context, people []*models.KnownPerson, err error) {
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if people == nil {
		people = []*models.KnownPerson{}
	}
	response.Success(c, people)
}

// List handles GET /api/v1/patients/:id/people
func (h *KnownPeopleHandler) List(c *gin.Context) {
	people, err := h.service.List(c.Request.Context(), caretakerID(c), c.Param("id"))
	h.respondList(c, people, err)
}

// EmergencyContacts handles GET /api/v1/patients/:id/emergency-contacts
func (h *KnownPeopleHandler) EmergencyContacts(c *gin.Context) {
	people, err := h.service.EmergencyContacts(c.Request.Context(), caretakerID(c), c.Param("id"))
	h.respondList(c, people, err)
}

// Add handles POST /api/v1/patients/:id/people as JSON or multipart form
func (h *KnownPeopleHandler) Add(c *gin.Context) {
	var (
		req personRequest
		in  service.PersonInput
		err error
	)
	if isMultipart(c) {
		if err = c.ShouldBind(&req); err != nil {
			response.BadRequest(c, "Invalid person data")
			return
		}
		in, _ = req.input()
		if fh, ferr := c.FormFile("photo"); ferr == nil {
			if in.Photo, err = readUpload(fh); err != nil {
				response.BadRequest(c, err.Error())
				return
			}
		}
	} else {
		if err = c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid person data")
			return
		}
		if in, err = req.input(); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	kp, err := h.service.Add(c.Request.Context(), caretakerID(c), c.Param("id"), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Created(c, kp)
}

// ReplaceAll handles PUT /api/v1/patients/:id/people
func (h *KnownPeopleHandler) ReplaceAll(c *gin.Context) {
	var req struct {
		People []personRequest `json:"people"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid people data")
		return
	}
	inputs := make([]service.PersonInput, 0, len(req.People))
	for _, p := range req.People {
		in, err := p.input()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		inputs = append(inputs, in)
	}
	people, err := h.service.ReplaceAll(c.Request.Context(), caretakerID(c), c.Param("id"), inputs)
	h.respondList(c, people, err)
}

// Update handles PATCH /api/v1/patients/:id/people/:personId
func (h *KnownPeopleHandler) Update(c *gin.Context) {
	var req updatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid person data")
		return
	}
	in := req.UpdatePersonInput
	photo, err := decodePhoto(req.Photo)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	in.Photo = photo

	kp, err := h.service.Update(c.Request.Context(), caretakerID(c), c.Param("id"), c.Param("personId"), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, kp)
}

// Delete handles DELETE /api/v1/patients/:id/people/:personId
func (h *KnownPeopleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), caretakerID(c), c.Param("id"), c.Param("personId")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
