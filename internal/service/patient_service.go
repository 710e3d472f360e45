package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/geofence"
	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/storage"
	"github.com/jengzang/safetrack-backend-go/internal/tracking"
)

type patientRepository interface {
	Create(ctx context.Context, p *models.Patient) error
	GetByID(ctx context.Context, id string) (*models.Patient, error)
	ListByCaretaker(ctx context.Context, caretakerID string) ([]*models.Patient, error)
	Update(ctx context.Context, p *models.Patient) error
	Delete(ctx context.Context, id string) error
}

type geocoder interface {
	Reverse(ctx context.Context, p models.GeoPoint) (*models.Place, error)
	Search(ctx context.Context, query string, limit int) ([]models.Place, error)
}

type rosterReader interface {
	ListByPatient(ctx context.Context, patientID string) ([]*models.KnownPerson, error)
}

// sessionController is the part of the tracking manager patient edits touch
type sessionController interface {
	UpdateGeofence(patientID string, fence models.GeofenceConfig) bool
	Stop(patientID string) error
}

// CreatePatientInput is the setup form. Base may be omitted when BaseAddress
// can be geocoded.
type CreatePatientInput struct {
	Name             string           `json:"name" binding:"required"`
	Base             *models.GeoPoint `json:"base"`
	SafeRadiusMeters float64          `json:"safeRadiusMeters"`
	BaseAddress      string           `json:"baseAddress"`
}

// UpdatePatientInput carries optional profile changes
type UpdatePatientInput struct {
	Name        *string `json:"name"`
	BaseAddress *string `json:"baseAddress"`
}

// PatientService manages patient profiles, geofences and photos
type PatientService struct {
	patients      patientRepository
	roster        rosterReader
	photos        storage.PhotoStore
	geocoder      geocoder
	sessions      sessionController
	defaultRadius float64
	logger        *zap.Logger
	now           func() time.Time
}

func NewPatientService(
	patients patientRepository,
	roster rosterReader,
	photos storage.PhotoStore,
	geocoder geocoder,
	sessions sessionController,
	defaultRadius float64,
	logger *zap.Logger,
) *PatientService {
	if defaultRadius <= 0 {
		defaultRadius = models.DefaultSafeRadiusMeters
	}
	return &PatientService{
		patients:      patients,
		roster:        roster,
		photos:        photos,
		geocoder:      geocoder,
		sessions:      sessions,
		defaultRadius: defaultRadius,
		logger:        logger,
		now:           time.Now,
	}
}

// Create registers a patient for the caretaker
func (s *PatientService) Create(ctx context.Context, caretakerID string, in CreatePatientInput) (*models.Patient, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidInput("name is required")
	}

	radius := in.SafeRadiusMeters
	if radius == 0 {
		radius = s.defaultRadius
	}

	address := strings.TrimSpace(in.BaseAddress)
	var base models.GeoPoint
	switch {
	case in.Base != nil:
		base = *in.Base
		if address == "" {
			address = s.lookupAddress(ctx, base)
		}
	case address != "":
		p, err := s.locate(ctx, address)
		if err != nil {
			return nil, err
		}
		base = p
	default:
		return nil, invalidInput("base location or base address is required")
	}

	fence := models.GeofenceConfig{Base: base, SafeRadiusMeters: radius}
	if err := geofence.ValidateConfig(fence); err != nil {
		return nil, invalidInput(err.Error())
	}

	now := s.now().UTC()
	p := &models.Patient{
		ID:          uuid.NewString(),
		CaretakerID: caretakerID,
		Name:        name,
		Geofence:    fence,
		BaseAddress: address,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return s.decorate(p), nil
}

func (s *PatientService) locate(ctx context.Context, address string) (models.GeoPoint, error) {
	if s.geocoder == nil {
		return models.GeoPoint{}, invalidInput("base location is required")
	}
	places, err := s.geocoder.Search(ctx, address, 1)
	if err != nil || len(places) == 0 {
		s.logger.Info("base address lookup failed", zap.String("address", address), zap.Error(err))
		return models.GeoPoint{}, invalidInput("could not locate base address")
	}
	return places[0].Point, nil
}

// lookupAddress is best effort; the address is only for display
func (s *PatientService) lookupAddress(ctx context.Context, p models.GeoPoint) string {
	if s.geocoder == nil || !p.Valid() {
		return ""
	}
	place, err := s.geocoder.Reverse(ctx, p)
	if err != nil {
		s.logger.Debug("reverse geocoding failed", zap.Error(err))
		return ""
	}
	return place.DisplayName
}

// Get returns a patient owned by the caretaker. Patients of other caretakers
// are reported as not found.
func (s *PatientService) Get(ctx context.Context, caretakerID, id string) (*models.Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.CaretakerID != caretakerID {
		return nil, ErrNotFound
	}
	return s.decorate(p), nil
}

func (s *PatientService) List(ctx context.Context, caretakerID string) ([]*models.Patient, error) {
	patients, err := s.patients.ListByCaretaker(ctx, caretakerID)
	if err != nil {
		return nil, err
	}
	for _, p := range patients {
		s.decorate(p)
	}
	return patients, nil
}

func (s *PatientService) Update(ctx context.Context, caretakerID, id string, in UpdatePatientInput) (*models.Patient, error) {
	p, err := s.Get(ctx, caretakerID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalidInput("name must not be empty")
		}
		p.Name = name
	}
	if in.BaseAddress != nil {
		p.BaseAddress = strings.TrimSpace(*in.BaseAddress)
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return p, nil
}

// UpdateGeofence replaces the patient's geofence. A running session uses the
// new config from its next sample.
func (s *PatientService) UpdateGeofence(ctx context.Context, caretakerID, id string, fence models.GeofenceConfig) (*models.Patient, error) {
	if err := geofence.ValidateConfig(fence); err != nil {
		return nil, invalidInput(err.Error())
	}
	p, err := s.Get(ctx, caretakerID, id)
	if err != nil {
		return nil, err
	}
	if p.Geofence.Base != fence.Base {
		p.BaseAddress = s.lookupAddress(ctx, fence.Base)
	}
	p.Geofence = fence
	p.UpdatedAt = s.now().UTC()
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update geofence: %w", err)
	}
	if s.sessions != nil {
		s.sessions.UpdateGeofence(p.ID, fence)
	}
	return p, nil
}

func parsePhotoKind(kind string) (models.PhotoKind, error) {
	switch models.PhotoKind(kind) {
	case models.PhotoFront, models.PhotoSide:
		return models.PhotoKind(kind), nil
	default:
		return "", invalidInput("photo kind must be front or side")
	}
}

func photoRef(p *models.Patient, kind models.PhotoKind) *string {
	if kind == models.PhotoSide {
		return &p.SidePhotoRef
	}
	return &p.FrontPhotoRef
}

// SetPhoto stores a front or side photo, replacing any previous one
func (s *PatientService) SetPhoto(ctx context.Context, caretakerID, id, kind string, data []byte) (*models.Patient, error) {
	k, err := parsePhotoKind(kind)
	if err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, caretakerID, id)
	if err != nil {
		return nil, err
	}

	key, err := savePhoto(ctx, s.photos, "patients/"+p.ID, data)
	if err != nil {
		return nil, err
	}

	ref := photoRef(p, k)
	old := *ref
	*ref = key
	p.UpdatedAt = s.now().UTC()
	if err := s.patients.Update(ctx, p); err != nil {
		deletePhoto(ctx, s.photos, s.logger, key)
		return nil, fmt.Errorf("failed to update patient photo: %w", err)
	}
	deletePhoto(ctx, s.photos, s.logger, old)
	return s.decorate(p), nil
}

// DeletePhoto removes a front or side photo
func (s *PatientService) DeletePhoto(ctx context.Context, caretakerID, id, kind string) (*models.Patient, error) {
	k, err := parsePhotoKind(kind)
	if err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, caretakerID, id)
	if err != nil {
		return nil, err
	}

	ref := photoRef(p, k)
	if *ref == "" {
		return nil, fmt.Errorf("%w: no %s photo", ErrNotFound, k)
	}
	old := *ref
	*ref = ""
	p.UpdatedAt = s.now().UTC()
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update patient photo: %w", err)
	}
	deletePhoto(ctx, s.photos, s.logger, old)
	return s.decorate(p), nil
}

// Delete stops tracking and removes the patient with all stored photos.
// Known people rows go with the patient through the foreign key cascade.
func (s *PatientService) Delete(ctx context.Context, caretakerID, id string) error {
	p, err := s.Get(ctx, caretakerID, id)
	if err != nil {
		return err
	}
	refs := []string{p.FrontPhotoRef, p.SidePhotoRef}
	people, err := s.roster.ListByPatient(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to list known people: %w", err)
	}
	for _, kp := range people {
		refs = append(refs, kp.PhotoRef)
	}
	if s.sessions != nil {
		if err := s.sessions.Stop(p.ID); err != nil && !errors.Is(err, tracking.ErrNoSession) {
			s.logger.Warn("failed to stop session", zap.String("patient_id", p.ID), zap.Error(err))
		}
	}
	if err := s.patients.Delete(ctx, p.ID); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	for _, ref := range refs {
		deletePhoto(ctx, s.photos, s.logger, ref)
	}
	return nil
}

// Identity is the "who am I" card shown to the patient
func (s *PatientService) Identity(ctx context.Context, caretakerID, id string) (*models.PatientIdentity, error) {
	p, err := s.Get(ctx, caretakerID, id)
	if err != nil {
		return nil, err
	}
	return &models.PatientIdentity{
		Name:          p.Name,
		FrontPhotoURL: p.FrontPhotoURL,
		SidePhotoURL:  p.SidePhotoURL,
		BaseAddress:   p.BaseAddress,
		Base:          p.Geofence.Base,
	}, nil
}

func (s *PatientService) decorate(p *models.Patient) *models.Patient {
	p.FrontPhotoURL = ""
	p.SidePhotoURL = ""
	if p.FrontPhotoRef != "" {
		p.FrontPhotoURL = s.photos.URL(p.FrontPhotoRef)
	}
	if p.SidePhotoRef != "" {
		p.SidePhotoURL = s.photos.URL(p.SidePhotoRef)
	}
	return p
}
