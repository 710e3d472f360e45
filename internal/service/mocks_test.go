package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/storage"
)

type mockPatientRepo struct {
	createFn          func(ctx context.Context, p *models.Patient) error
	getByIDFn         func(ctx context.Context, id string) (*models.Patient, error)
	listByCaretakerFn func(ctx context.Context, caretakerID string) ([]*models.Patient, error)
	updateFn          func(ctx context.Context, p *models.Patient) error
	deleteFn          func(ctx context.Context, id string) error
}

func (m *mockPatientRepo) Create(ctx context.Context, p *models.Patient) error {
	return m.createFn(ctx, p)
}

func (m *mockPatientRepo) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockPatientRepo) ListByCaretaker(ctx context.Context, caretakerID string) ([]*models.Patient, error) {
	return m.listByCaretakerFn(ctx, caretakerID)
}

func (m *mockPatientRepo) Update(ctx context.Context, p *models.Patient) error {
	return m.updateFn(ctx, p)
}

func (m *mockPatientRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

// patientStore returns a repo mock backed by a map
func patientStore(patients ...*models.Patient) (*mockPatientRepo, map[string]*models.Patient) {
	byID := make(map[string]*models.Patient)
	for _, p := range patients {
		byID[p.ID] = p
	}
	repo := &mockPatientRepo{
		createFn: func(_ context.Context, p *models.Patient) error {
			byID[p.ID] = p
			return nil
		},
		getByIDFn: func(_ context.Context, id string) (*models.Patient, error) {
			p, ok := byID[id]
			if !ok {
				return nil, ErrNotFound
			}
			cp := *p
			return &cp, nil
		},
		listByCaretakerFn: func(_ context.Context, caretakerID string) ([]*models.Patient, error) {
			var out []*models.Patient
			for _, p := range byID {
				if p.CaretakerID == caretakerID {
					cp := *p
					out = append(out, &cp)
				}
			}
			return out, nil
		},
		updateFn: func(_ context.Context, p *models.Patient) error {
			cp := *p
			byID[p.ID] = &cp
			return nil
		},
		deleteFn: func(_ context.Context, id string) error {
			delete(byID, id)
			return nil
		},
	}
	return repo, byID
}

type mockPeopleRepo struct {
	mu     sync.Mutex
	people map[string]*models.KnownPerson
	failOn string
}

func newMockPeopleRepo(people ...*models.KnownPerson) *mockPeopleRepo {
	m := &mockPeopleRepo{people: make(map[string]*models.KnownPerson)}
	for _, kp := range people {
		m.people[kp.ID] = kp
	}
	return m
}

func (m *mockPeopleRepo) fail(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s failed", op)
	}
	return nil
}

func (m *mockPeopleRepo) Create(_ context.Context, kp *models.KnownPerson) error {
	if err := m.fail("create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *kp
	m.people[kp.ID] = &cp
	return nil
}

func (m *mockPeopleRepo) GetByID(_ context.Context, patientID, id string) (*models.KnownPerson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kp, ok := m.people[id]
	if !ok || kp.PatientID != patientID {
		return nil, ErrNotFound
	}
	cp := *kp
	return &cp, nil
}

func (m *mockPeopleRepo) ListByPatient(_ context.Context, patientID string) ([]*models.KnownPerson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.KnownPerson{}
	for _, kp := range m.people {
		if kp.PatientID == patientID {
			cp := *kp
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockPeopleRepo) Update(_ context.Context, kp *models.KnownPerson) error {
	if err := m.fail("update"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *kp
	m.people[kp.ID] = &cp
	return nil
}

func (m *mockPeopleRepo) Delete(_ context.Context, patientID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kp, ok := m.people[id]
	if !ok || kp.PatientID != patientID {
		return ErrNotFound
	}
	delete(m.people, id)
	return nil
}

func (m *mockPeopleRepo) ReplaceAll(_ context.Context, patientID string, people []*models.KnownPerson) error {
	if err := m.fail("replace"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, kp := range m.people {
		if kp.PatientID == patientID {
			delete(m.people, id)
		}
	}
	for _, kp := range people {
		cp := *kp
		m.people[kp.ID] = &cp
	}
	return nil
}

// memoryPhotos is an in-memory storage.PhotoStore
type memoryPhotos struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	n       int
	saveErr error
}

var _ storage.PhotoStore = (*memoryPhotos)(nil)

func newMemoryPhotos() *memoryPhotos {
	return &memoryPhotos{objects: make(map[string][]byte)}
}

func (m *memoryPhotos) Save(_ context.Context, prefix string, data []byte) (string, error) {
	if !strings.HasPrefix(string(data), "\x89PNG") {
		return "", storage.ErrNotImage
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.n++
	key := fmt.Sprintf("%s/photo-%d.png", prefix, m.n)
	m.objects[key] = data
	return key, nil
}

func (m *memoryPhotos) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryPhotos) URL(key string) string {
	return "http://photos.test/" + key
}

func (m *memoryPhotos) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n0000")

type mockGeocoder struct {
	reverseFn func(ctx context.Context, p models.GeoPoint) (*models.Place, error)
	searchFn  func(ctx context.Context, query string, limit int) ([]models.Place, error)
}

func (m *mockGeocoder) Reverse(ctx context.Context, p models.GeoPoint) (*models.Place, error) {
	return m.reverseFn(ctx, p)
}

func (m *mockGeocoder) Search(ctx context.Context, query string, limit int) ([]models.Place, error) {
	return m.searchFn(ctx, query, limit)
}

type mockSessions struct {
	updated map[string]models.GeofenceConfig
	stopped []string
}

func (m *mockSessions) UpdateGeofence(patientID string, fence models.GeofenceConfig) bool {
	if m.updated == nil {
		m.updated = make(map[string]models.GeofenceConfig)
	}
	m.updated[patientID] = fence
	return true
}

func (m *mockSessions) Stop(patientID string) error {
	m.stopped = append(m.stopped, patientID)
	return nil
}
