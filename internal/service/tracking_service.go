package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jengzang/safetrack-backend-go/internal/export"
	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/tracking"
)

type sessionManager interface {
	Start(patientID string, fence models.GeofenceConfig, mode tracking.Mode) (*tracking.Snapshot, error)
	Stop(patientID string) error
	Status(ctx context.Context, patientID string) (*tracking.Snapshot, error)
	History(patientID string) ([]models.LocationHistoryEntry, error)
	Refresh(patientID string) (*tracking.Snapshot, error)
}

type historyLister interface {
	List(ctx context.Context, filter models.HistoryFilter) (*models.HistoryPage, error)
}

// MaxExportRows bounds a single history export
const MaxExportRows = 10000

const exportPageSize = 1000

// TrackingService scopes tracking sessions and stored history to the caretaker
type TrackingService struct {
	patients patientLookup
	sessions sessionManager
	history  historyLister
}

func NewTrackingService(patients patientLookup, sessions sessionManager, history historyLister) *TrackingService {
	return &TrackingService{patients: patients, sessions: sessions, history: history}
}

// Authorize checks the caretaker owns the patient
func (s *TrackingService) Authorize(ctx context.Context, caretakerID, patientID string) error {
	_, err := s.patients.Get(ctx, caretakerID, patientID)
	return err
}

// Start begins (or restarts) tracking with the given mode name
func (s *TrackingService) Start(ctx context.Context, caretakerID, patientID, mode string) (*tracking.Snapshot, error) {
	m, err := tracking.ParseMode(mode)
	if err != nil {
		return nil, invalidInput(err.Error())
	}
	p, err := s.patients.Get(ctx, caretakerID, patientID)
	if err != nil {
		return nil, err
	}
	return s.sessions.Start(p.ID, p.Geofence, m)
}

func (s *TrackingService) Stop(ctx context.Context, caretakerID, patientID string) error {
	if err := s.Authorize(ctx, caretakerID, patientID); err != nil {
		return err
	}
	return s.sessions.Stop(patientID)
}

func (s *TrackingService) Refresh(ctx context.Context, caretakerID, patientID string) (*tracking.Snapshot, error) {
	if err := s.Authorize(ctx, caretakerID, patientID); err != nil {
		return nil, err
	}
	return s.sessions.Refresh(patientID)
}

func (s *TrackingService) Status(ctx context.Context, caretakerID, patientID string) (*tracking.Snapshot, error) {
	if err := s.Authorize(ctx, caretakerID, patientID); err != nil {
		return nil, err
	}
	return s.sessions.Status(ctx, patientID)
}

// History returns the session's in-memory buffer, newest first
func (s *TrackingService) History(ctx context.Context, caretakerID, patientID string) ([]models.LocationHistoryEntry, error) {
	if err := s.Authorize(ctx, caretakerID, patientID); err != nil {
		return nil, err
	}
	return s.sessions.History(patientID)
}

func validateHistoryFilter(filter models.HistoryFilter) error {
	switch models.StatusLevel(filter.Status) {
	case "", models.StatusSafe, models.StatusWarning, models.StatusAlert:
	default:
		return invalidInput("status must be safe, warning or alert")
	}
	if filter.StartTime > 0 && filter.EndTime > 0 && filter.StartTime > filter.EndTime {
		return invalidInput("startTime must not be after endTime")
	}
	if filter.Page < 0 || filter.PageSize < 0 {
		return invalidInput("page and pageSize must not be negative")
	}
	return nil
}

// StoredHistory pages through persisted history
func (s *TrackingService) StoredHistory(ctx context.Context, caretakerID, patientID string, filter models.HistoryFilter) (*models.HistoryPage, error) {
	if err := validateHistoryFilter(filter); err != nil {
		return nil, err
	}
	if err := s.Authorize(ctx, caretakerID, patientID); err != nil {
		return nil, err
	}
	filter.PatientID = patientID
	return s.history.List(ctx, filter)
}

// ExportHistory renders matching stored history as an xlsx workbook
func (s *TrackingService) ExportHistory(ctx context.Context, caretakerID, patientID string, filter models.HistoryFilter) ([]byte, error) {
	if err := validateHistoryFilter(filter); err != nil {
		return nil, err
	}
	if err := s.Authorize(ctx, caretakerID, patientID); err != nil {
		return nil, err
	}

	filter.PatientID = patientID
	filter.PageSize = exportPageSize
	var rows []models.StoredHistoryEntry
	for page := 1; len(rows) < MaxExportRows; page++ {
		filter.Page = page
		res, err := s.history.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
		rows = append(rows, res.Data...)
		if page >= res.TotalPages || len(res.Data) == 0 {
			break
		}
	}
	if len(rows) > MaxExportRows {
		rows = rows[:MaxExportRows]
	}
	return export.HistoryXLSX(rows)
}

// IsNoSession reports whether err means the patient is not being tracked
func IsNoSession(err error) bool {
	return errors.Is(err, tracking.ErrNoSession)
}
