package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/realtime"
	"github.com/jengzang/safetrack-backend-go/internal/service"
	"github.com/jengzang/safetrack-backend-go/internal/tracking"
)

type mockTrackingService struct {
	authorizeFunc     func(ctx context.Context, caretakerID, patientID string) error
	startFunc         func(ctx context.Context, caretakerID, patientID, mode string) (*tracking.Snapshot, error)
	stopFunc          func(ctx context.Context, caretakerID, patientID string) error
	refreshFunc       func(ctx context.Context, caretakerID, patientID string) (*tracking.Snapshot, error)
	statusFunc        func(ctx context.Context, caretakerID, patientID string) (*tracking.Snapshot, error)
	historyFunc       func(ctx context.Context, caretakerID, patientID string) ([]models.LocationHistoryEntry, error)
	storedHistoryFunc func(ctx context.Context, caretakerID, patientID string, filter models.HistoryFilter) (*models.HistoryPage, error)
	exportFunc        func(ctx context.Context, caretakerID, patientID string, filter models.HistoryFilter) ([]byte, error)
}

func (m *mockTrackingService) Authorize(ctx context.Context, caretakerID, patientID string) error {
	return m.authorizeFunc(ctx, caretakerID, patientID)
}

func (m *mockTrackingService) Start(ctx context.Context, caretakerID, patientID, mode string) (*tracking.Snapshot, error) {
	return m.startFunc(ctx, caretakerID, patientID, mode)
}

func (m *mockTrackingService) Stop(ctx context.Context, caretakerID, patientID string) error {
	return m.stopFunc(ctx, caretakerID, patientID)
}

func (m *mockTrackingService) Refresh(ctx context.Context, caretakerID, patientID string) (*tracking.Snapshot, error) {
	return m.refreshFunc(ctx, caretakerID, patientID)
}

func (m *mockTrackingService) Status(ctx context.Context, caretakerID, patientID string) (*tracking.Snapshot, error) {
	return m.statusFunc(ctx, caretakerID, patientID)
}

func (m *mockTrackingService) History(ctx context.Context, caretakerID, patientID string) ([]models.LocationHistoryEntry, error) {
	return m.historyFunc(ctx, caretakerID, patientID)
}

func (m *mockTrackingService) StoredHistory(ctx context.Context, caretakerID, patientID string, filter models.HistoryFilter) (*models.HistoryPage, error) {
	return m.storedHistoryFunc(ctx, caretakerID, patientID, filter)
}

func (m *mockTrackingService) ExportHistory(ctx context.Context, caretakerID, patientID string, filter models.HistoryFilter) ([]byte, error) {
	return m.exportFunc(ctx, caretakerID, patientID, filter)
}

func snapshotFor(patientID string, mode tracking.Mode) *tracking.Snapshot {
	return &tracking.Snapshot{PatientID: patientID, Mode: mode, Active: true}
}

func TestTrackingHandler_StartModeFromBodyOrQuery(t *testing.T) {
	var gotMode string
	svc := &mockTrackingService{
		startFunc: func(_ context.Context, _, patientID, mode string) (*tracking.Snapshot, error) {
			gotMode = mode
			return snapshotFor(patientID, tracking.ModeSimulated), nil
		},
	}
	r := setupRouter(NewTrackingHandler(svc, nil, testLogger()))

	w := doJSON(t, r, http.MethodPost, "/api/v1/patients/p1/tracking", map[string]string{"mode": "simulated"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "simulated", gotMode)

	w = doJSON(t, r, http.MethodPost, "/api/v1/patients/p1/tracking?mode=device", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "device", gotMode)
}

func TestTrackingHandler_StartDeviceUnavailable(t *testing.T) {
	svc := &mockTrackingService{
		startFunc: func(context.Context, string, string, string) (*tracking.Snapshot, error) {
			return nil, tracking.ErrDeviceUnavailable
		},
	}
	r := setupRouter(NewTrackingHandler(svc, nil, testLogger()))

	w := doJSON(t, r, http.MethodPost, "/api/v1/patients/p1/tracking", map[string]string{"mode": "device"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTrackingHandler_StopWithoutSession(t *testing.T) {
	svc := &mockTrackingService{
		stopFunc: func(context.Context, string, string) error { return tracking.ErrNoSession },
	}
	r := setupRouter(NewTrackingHandler(svc, nil, testLogger()))

	w := doJSON(t, r, http.MethodDelete, "/api/v1/patients/p1/tracking", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrackingHandler_HistoryEmptyIsArray(t *testing.T) {
	svc := &mockTrackingService{
		historyFunc: func(context.Context, string, string) ([]models.LocationHistoryEntry, error) { return nil, nil },
	}
	r := setupRouter(NewTrackingHandler(svc, nil, testLogger()))

	w := doJSON(t, r, http.MethodGet, "/api/v1/patients/p1/history", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(decodeEnvelope(t, w).Data))
}

func TestTrackingHandler_StoredHistoryBindsQuery(t *testing.T) {
	var got models.HistoryFilter
	svc := &mockTrackingService{
		storedHistoryFunc: func(_ context.Context, _, _ string, filter models.HistoryFilter) (*models.HistoryPage, error) {
			got = filter
			return &models.HistoryPage{Data: []models.StoredHistoryEntry{}, Page: filter.Page}, nil
		},
	}
	r := setupRouter(NewTrackingHandler(svc, nil, testLogger()))

	w := doJSON(t, r, http.MethodGet, "/api/v1/patients/p1/history/stored?status=alert&page=2&pageSize=10&startTime=100", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alert", got.Status)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 10, got.PageSize)
	assert.Equal(t, int64(100), got.StartTime)
}

func TestTrackingHandler_StoredHistoryBadQuery(t *testing.T) {
	r := setupRouter(NewTrackingHandler(&mockTrackingService{}, nil, testLogger()))

	w := doJSON(t, r, http.MethodGet, "/api/v1/patients/p1/history/stored?page=two", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackingHandler_ExportHistory(t *testing.T) {
	svc := &mockTrackingService{
		exportFunc: func(context.Context, string, string, models.HistoryFilter) ([]byte, error) {
			return []byte("PK-xlsx"), nil
		},
	}
	r := setupRouter(NewTrackingHandler(svc, nil, testLogger()))

	w := doJSON(t, r, http.MethodGet, "/api/v1/patients/p1/history/export", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="history-p1.xlsx"`)
	assert.Equal(t, "PK-xlsx", w.Body.String())
}

func TestTrackingHandler_StreamDisabledWithoutHub(t *testing.T) {
	r := setupRouter(NewTrackingHandler(&mockTrackingService{}, nil, testLogger()))

	w := doJSON(t, r, http.MethodGet, "/api/v1/patients/p1/stream", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTrackingHandler_StreamRejectsForeignPatient(t *testing.T) {
	svc := &mockTrackingService{
		authorizeFunc: func(context.Context, string, string) error { return service.ErrNotFound },
	}
	hub := realtime.NewHub(testLogger())
	r := setupRouter(NewTrackingHandler(svc, hub, testLogger()))

	w := doJSON(t, r, http.MethodGet, "/api/v1/patients/p1/stream", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrackingHandler_StreamSendsSnapshotThenUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := realtime.NewHub(testLogger())
	go hub.Run(ctx)

	svc := &mockTrackingService{
		authorizeFunc: func(context.Context, string, string) error { return nil },
		statusFunc: func(_ context.Context, _, patientID string) (*tracking.Snapshot, error) {
			return snapshotFor(patientID, tracking.ModeSimulated), nil
		},
	}
	srv := httptest.NewServer(setupRouter(NewTrackingHandler(svc, hub, testLogger())))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/patients/p1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first realtime.Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, realtime.MessageTypeStatus, first.Type)
	assert.Equal(t, "p1", first.PatientID)

	require.Eventually(t, func() bool { return hub.ClientCount("p1") == 1 }, time.Second, 10*time.Millisecond)
	hub.Publish("p1", realtime.MessageTypeAlert, map[string]string{"level": "alert"})

	var next realtime.Message
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, realtime.MessageTypeAlert, next.Type)
}
