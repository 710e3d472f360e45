package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/safetrack-backend-go/internal/dataurl"
	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/service"
)

type mockKnownPeopleService struct {
	listFunc       func(ctx context.Context, caretakerID, patientID string) ([]*models.KnownPerson, error)
	addFunc        func(ctx context.Context, caretakerID, patientID string, in service.PersonInput) (*models.KnownPerson, error)
	updateFunc     func(ctx context.Context, caretakerID, patientID, personID string, in service.UpdatePersonInput) (*models.KnownPerson, error)
	deleteFunc     func(ctx context.Context, caretakerID, patientID, personID string) error
	replaceAllFunc func(ctx context.Context, caretakerID, patientID string, inputs []service.PersonInput) ([]*models.KnownPerson, error)
	emergencyFunc  func(ctx context.Context, caretakerID, patientID string) ([]*models.KnownPerson, error)
}

func (m *mockKnownPeopleService) List(ctx context.Context, caretakerID, patientID string) ([]*models.KnownPerson, error) {
	return m.listFunc(ctx, caretakerID, patientID)
}

func (m *mockKnownPeopleService) Add(ctx context.Context, caretakerID, patientID string, in service.PersonInput) (*models.KnownPerson, error) {
	return m.addFunc(ctx, caretakerID, patientID, in)
}

func (m *mockKnownPeopleService) Update(ctx context.Context, caretakerID, patientID, personID string, in service.UpdatePersonInput) (*models.KnownPerson, error) {
	return m.updateFunc(ctx, caretakerID, patientID, personID, in)
}

func (m *mockKnownPeopleService) Delete(ctx context.Context, caretakerID, patientID, personID string) error {
	return m.deleteFunc(ctx, caretakerID, patientID, personID)
}

func (m *mockKnownPeopleService) ReplaceAll(ctx context.Context, caretakerID, patientID string, inputs []service.PersonInput) ([]*models.KnownPerson, error) {
	return m.replaceAllFunc(ctx, caretakerID, patientID, inputs)
}

func (m *mockKnownPeopleService) EmergencyContacts(ctx context.Context, caretakerID, patientID string) ([]*models.KnownPerson, error) {
	return m.emergencyFunc(ctx, caretakerID, patientID)
}

func echoAdd(got *service.PersonInput) func(context.Context, string, string, service.PersonInput) (*models.KnownPerson, error) {
	return func(_ context.Context, _, patientID string, in service.PersonInput) (*models.KnownPerson, error) {
		*got = in
		return &models.KnownPerson{ID: "kp1", PatientID: patientID, Name: in.Name}, nil
	}
}

func TestKnownPeopleHandler_AddJSONWithPhoto(t *testing.T) {
	var got service.PersonInput
	r := setupRouter(NewKnownPeopleHandler(&mockKnownPeopleService{addFunc: echoAdd(&got)}, testLogger()))

	w := doJSON(t, r, http.MethodPost, "/api/v1/patients/p1/people", map[string]any{
		"name":               "Bea",
		"relationship":       "Daughter",
		"phone":              "555-0100",
		"address":            "1 Main St",
		"isEmergencyContact": true,
		"photo":              dataurl.Encode(pngHeader),
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Bea", got.Name)
	assert.True(t, got.IsEmergencyContact)
	assert.Equal(t, pngHeader, got.Photo)
}

func TestKnownPeopleHandler_AddMultipart(t *testing.T) {
	var got service.PersonInput
	r := setupRouter(NewKnownPeopleHandler(&mockKnownPeopleService{addFunc: echoAdd(&got)}, testLogger()))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"name": "Bea", "relationship": "Doctor", "phone": "555", "address": "Clinic",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("photo", "bea.png")
	require.NoError(t, err)
	_, err = fw.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients/p1/people", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Doctor", got.Relationship)
	assert.Equal(t, pngHeader, got.Photo)
}

func TestKnownPeopleHandler_AddValidationError(t *testing.T) {
	svc := &mockKnownPeopleService{
		addFunc: func(context.Context, string, string, service.PersonInput) (*models.KnownPerson, error) {
			return nil, service.ErrInvalidInput
		},
	}
	r := setupRouter(NewKnownPeopleHandler(svc, testLogger()))

	w := doJSON(t, r, http.MethodPost, "/api/v1/patients/p1/people", map[string]any{"name": "Bea"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKnownPeopleHandler_ReplaceAll(t *testing.T) {
	var got []service.PersonInput
	svc := &mockKnownPeopleService{
		replaceAllFunc: func(_ context.Context, _, _ string, inputs []service.PersonInput) ([]*models.KnownPerson, error) {
			got = inputs
			return nil, nil
		},
	}
	r := setupRouter(NewKnownPeopleHandler(svc, testLogger()))

	w := doJSON(t, r, http.MethodPut, "/api/v1/patients/p1/people", map[string]any{
		"people": []map[string]any{
			{"name": "A", "relationship": "Son", "phone": "1", "address": "x"},
			{"name": "B", "relationship": "Friend", "phone": "2", "address": "y"},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, got, 2)
	assert.JSONEq(t, "[]", string(decodeEnvelope(t, w).Data))
}

func TestKnownPeopleHandler_UpdatePartial(t *testing.T) {
	var got service.UpdatePersonInput
	var gotID string
	svc := &mockKnownPeopleService{
		updateFunc: func(_ context.Context, _, _, personID string, in service.UpdatePersonInput) (*models.KnownPerson, error) {
			got, gotID = in, personID
			return &models.KnownPerson{ID: personID}, nil
		},
	}
	r := setupRouter(NewKnownPeopleHandler(svc, testLogger()))

	w := doJSON(t, r, http.MethodPatch, "/api/v1/patients/p1/people/kp9", map[string]any{
		"phone":       "555-0199",
		"removePhoto": true,
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "kp9", gotID)
	require.NotNil(t, got.Phone)
	assert.Equal(t, "555-0199", *got.Phone)
	assert.Nil(t, got.Name)
	assert.True(t, got.RemovePhoto)
	assert.Nil(t, got.Photo)
}

func TestKnownPeopleHandler_DeleteMissing(t *testing.T) {
	svc := &mockKnownPeopleService{
		deleteFunc: func(context.Context, string, string, string) error { return service.ErrNotFound },
	}
	r := setupRouter(NewKnownPeopleHandler(svc, testLogger()))

	w := doJSON(t, r, http.MethodDelete, "/api/v1/patients/p1/people/nope", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKnownPeopleHandler_EmergencyContacts(t *testing.T) {
	svc := &mockKnownPeopleService{
		emergencyFunc: func(context.Context, string, string) ([]*models.KnownPerson, error) {
			return []*models.KnownPerson{{ID: "kp1", Name: "Dr. Who"}}, nil
		},
	}
	r := setupRouter(NewKnownPeopleHandler(svc, testLogger()))

	w := doJSON(t, r, http.MethodGet, "/api/v1/patients/p1/emergency-contacts", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), "Dr. Who")
}
