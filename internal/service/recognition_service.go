package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/recognition"
)

type faceComparer interface {
	Compare(ctx context.Context, img recognition.Image, candidates []recognition.Candidate) recognition.Result
}

type rosterLister interface {
	List(ctx context.Context, caretakerID, patientID string) ([]*models.KnownPerson, error)
}

// IdentifyResult is the comparison outcome plus the matched roster entry
type IdentifyResult struct {
	recognition.Result
	Person *models.KnownPerson `json:"person,omitempty"`
}

// RecognitionService runs the "who is this?" flow against a patient's roster
type RecognitionService struct {
	roster   rosterLister
	comparer faceComparer
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewRecognitionService(roster rosterLister, comparer faceComparer, logger *zap.Logger) *RecognitionService {
	return &RecognitionService{
		roster:   roster,
		comparer: comparer,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

func (s *RecognitionService) acquire(patientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[patientID]; busy {
		return false
	}
	s.inFlight[patientID] = struct{}{}
	return true
}

func (s *RecognitionService) release(patientID string) {
	s.mu.Lock()
	delete(s.inFlight, patientID)
	s.mu.Unlock()
}

// Identify compares a captured image with the photos of the patient's known
// people. Only one identification per patient runs at a time.
func (s *RecognitionService) Identify(ctx context.Context, caretakerID, patientID string, img recognition.Image) (*IdentifyResult, error) {
	if img.DataURL == "" && len(img.Data) == 0 && img.URL == "" {
		return nil, invalidInput("image is required")
	}

	people, err := s.roster.List(ctx, caretakerID, patientID)
	if err != nil {
		return nil, err
	}

	if !s.acquire(patientID) {
		return nil, fmt.Errorf("%w: identification already in progress", ErrConflict)
	}
	defer s.release(patientID)

	byID := make(map[string]*models.KnownPerson, len(people))
	candidates := make([]recognition.Candidate, 0, len(people))
	for _, kp := range people {
		if kp.PhotoURL == "" {
			continue
		}
		byID[kp.ID] = kp
		candidates = append(candidates, recognition.Candidate{ID: kp.ID, ImageURL: kp.PhotoURL})
	}

	result := s.comparer.Compare(ctx, img, candidates)
	out := &IdentifyResult{Result: result}
	if result.MatchedID != "" {
		out.Person = byID[result.MatchedID]
	}

	s.logger.Info("identification completed",
		zap.String("patient_id", patientID),
		zap.Int("candidates", len(candidates)),
		zap.Bool("match", result.IsMatch),
		zap.String("error", result.Error),
	)
	return out, nil
}
