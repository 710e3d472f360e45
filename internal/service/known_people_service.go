package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/storage"
)

type knownPersonRepository interface {
	Create(ctx context.Context, kp *models.KnownPerson) error
	GetByID(ctx context.Context, patientID, id string) (*models.KnownPerson, error)
	ListByPatient(ctx context.Context, patientID string) ([]*models.KnownPerson, error)
	Update(ctx context.Context, kp *models.KnownPerson) error
	Delete(ctx context.Context, patientID, id string) error
	ReplaceAll(ctx context.Context, patientID string, people []*models.KnownPerson) error
}

type patientLookup interface {
	Get(ctx context.Context, caretakerID, id string) (*models.Patient, error)
}

// PersonInput is one roster entry as submitted by the caretaker
type PersonInput struct {
	Name               string `json:"name"`
	Relationship       string `json:"relationship"`
	Phone              string `json:"phone"`
	Address            string `json:"address"`
	Details            string `json:"details"`
	IsEmergencyContact bool   `json:"isEmergencyContact"`
	Photo              []byte `json:"-"`
}

// UpdatePersonInput carries optional roster entry changes
type UpdatePersonInput struct {
	Name               *string `json:"name"`
	Relationship       *string `json:"relationship"`
	Phone              *string `json:"phone"`
	Address            *string `json:"address"`
	Details            *string `json:"details"`
	IsEmergencyContact *bool   `json:"isEmergencyContact"`
	RemovePhoto        bool    `json:"removePhoto"`
	Photo              []byte  `json:"-"`
}

// KnownPeopleService manages a patient's roster of known people
type KnownPeopleService struct {
	patients patientLookup
	people   knownPersonRepository
	photos   storage.PhotoStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewKnownPeopleService(patients patientLookup, people knownPersonRepository, photos storage.PhotoStore, logger *zap.Logger) *KnownPeopleService {
	return &KnownPeopleService{
		patients: patients,
		people:   people,
		photos:   photos,
		logger:   logger,
		now:      time.Now,
	}
}

func (in PersonInput) validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", in.Name},
		{"relationship", in.Relationship},
		{"phone", in.Phone},
		{"address", in.Address},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return invalidInput("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

func (s *KnownPeopleService) List(ctx context.Context, caretakerID, patientID string) ([]*models.KnownPerson, error) {
	if _, err := s.patients.Get(ctx, caretakerID, patientID); err != nil {
		return nil, err
	}
	people, err := s.people.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	for _, kp := range people {
		s.decorate(kp)
	}
	return people, nil
}

func (s *KnownPeopleService) newPerson(ctx context.Context, patientID string, in PersonInput) (*models.KnownPerson, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	kp := &models.KnownPerson{
		ID:                 uuid.NewString(),
		PatientID:          patientID,
		Name:               strings.TrimSpace(in.Name),
		Relationship:       strings.TrimSpace(in.Relationship),
		Phone:              strings.TrimSpace(in.Phone),
		Address:            strings.TrimSpace(in.Address),
		Details:            strings.TrimSpace(in.Details),
		IsEmergencyContact: in.IsEmergencyContact,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if len(in.Photo) > 0 {
		key, err := savePhoto(ctx, s.photos, peoplePrefix(patientID), in.Photo)
		if err != nil {
			return nil, err
		}
		kp.PhotoRef = key
	}
	return kp, nil
}

func peoplePrefix(patientID string) string {
	return "patients/" + patientID + "/people"
}

func (s *KnownPeopleService) Add(ctx context.Context, caretakerID, patientID string, in PersonInput) (*models.KnownPerson, error) {
	if _, err := s.patients.Get(ctx, caretakerID, patientID); err != nil {
		return nil, err
	}
	kp, err := s.newPerson(ctx, patientID, in)
	if err != nil {
		return nil, err
	}
	if err := s.people.Create(ctx, kp); err != nil {
		deletePhoto(ctx, s.photos, s.logger, kp.PhotoRef)
		return nil, fmt.Errorf("failed to add known person: %w", err)
	}
	return s.decorate(kp), nil
}

func (s *KnownPeopleService) Update(ctx context.Context, caretakerID, patientID, personID string, in UpdatePersonInput) (*models.KnownPerson, error) {
	if _, err := s.patients.Get(ctx, caretakerID, patientID); err != nil {
		return nil, err
	}
	kp, err := s.people.GetByID(ctx, patientID, personID)
	if err != nil {
		return nil, err
	}

	set := func(dst *string, v *string, field string, required bool) error {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		if required && t == "" {
			return invalidInput(field + " must not be empty")
		}
		*dst = t
		return nil
	}
	for _, f := range []struct {
		dst      *string
		v        *string
		name     string
		required bool
	}{
		{&kp.Name, in.Name, "name", true},
		{&kp.Relationship, in.Relationship, "relationship", true},
		{&kp.Phone, in.Phone, "phone", true},
		{&kp.Address, in.Address, "address", true},
		{&kp.Details, in.Details, "details", false},
	} {
		if err := set(f.dst, f.v, f.name, f.required); err != nil {
			return nil, err
		}
	}
	if in.IsEmergencyContact != nil {
		kp.IsEmergencyContact = *in.IsEmergencyContact
	}

	old := kp.PhotoRef
	switch {
	case len(in.Photo) > 0:
		key, err := savePhoto(ctx, s.photos, peoplePrefix(patientID), in.Photo)
		if err != nil {
			return nil, err
		}
		kp.PhotoRef = key
	case in.RemovePhoto:
		kp.PhotoRef = ""
	}

	kp.UpdatedAt = s.now().UTC()
	if err := s.people.Update(ctx, kp); err != nil {
		if kp.PhotoRef != old {
			deletePhoto(ctx, s.photos, s.logger, kp.PhotoRef)
		}
		return nil, fmt.Errorf("failed to update known person: %w", err)
	}
	if kp.PhotoRef != old {
		deletePhoto(ctx, s.photos, s.logger, old)
	}
	return s.decorate(kp), nil
}

// Delete removes the entry and its stored photo
func (s *KnownPeopleService) Delete(ctx context.Context, caretakerID, patientID, personID string) error {
	if _, err := s.patients.Get(ctx, caretakerID, patientID); err != nil {
		return err
	}
	kp, err := s.people.GetByID(ctx, patientID, personID)
	if err != nil {
		return err
	}
	if err := s.people.Delete(ctx, patientID, personID); err != nil {
		return fmt.Errorf("failed to delete known person: %w", err)
	}
	deletePhoto(ctx, s.photos, s.logger, kp.PhotoRef)
	return nil
}

// ReplaceAll swaps the whole roster, as submitted by the setup flow
func (s *KnownPeopleService) ReplaceAll(ctx context.Context, caretakerID, patientID string, inputs []PersonInput) ([]*models.KnownPerson, error) {
	if _, err := s.patients.Get(ctx, caretakerID, patientID); err != nil {
		return nil, err
	}
	for i, in := range inputs {
		if err := in.validate(); err != nil {
			return nil, fmt.Errorf("person %d: %w", i+1, err)
		}
	}

	previous, err := s.people.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	people := make([]*models.KnownPerson, 0, len(inputs))
	cleanup := func() {
		for _, kp := range people {
			deletePhoto(ctx, s.photos, s.logger, kp.PhotoRef)
		}
	}
	for _, in := range inputs {
		kp, err := s.newPerson(ctx, patientID, in)
		if err != nil {
			cleanup()
			return nil, err
		}
		people = append(people, kp)
	}

	if err := s.people.ReplaceAll(ctx, patientID, people); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to replace known people: %w", err)
	}
	for _, kp := range previous {
		deletePhoto(ctx, s.photos, s.logger, kp.PhotoRef)
	}
	for _, kp := range people {
		s.decorate(kp)
	}
	return people, nil
}

// IsEmergencyContact reports whether kp should be listed as an emergency contact
func IsEmergencyContact(kp *models.KnownPerson) bool {
	if kp.IsEmergencyContact {
		return true
	}
	rel := strings.ToLower(kp.Relationship)
	return strings.Contains(rel, "emergency") || strings.Contains(rel, "doctor")
}

func (s *KnownPeopleService) EmergencyContacts(ctx context.Context, caretakerID, patientID string) ([]*models.KnownPerson, error) {
	people, err := s.List(ctx, caretakerID, patientID)
	if err != nil {
		return nil, err
	}
	contacts := make([]*models.KnownPerson, 0, len(people))
	for _, kp := range people {
		if IsEmergencyContact(kp) {
			contacts = append(contacts, kp)
		}
	}
	return contacts, nil
}

func (s *KnownPeopleService) decorate(kp *models.KnownPerson) *models.KnownPerson {
	kp.PhotoURL = ""
	if kp.PhotoRef != "" {
		kp.PhotoURL = s.photos.URL(kp.PhotoRef)
	}
	return kp
}
