package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/alert"
	"github.com/jengzang/safetrack-backend-go/internal/cache"
	"github.com/jengzang/safetrack-backend-go/internal/geofence"
	"github.com/jengzang/safetrack-backend-go/internal/metrics"
	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/realtime"
)

// ErrNoSession is returned when a patient has no active tracking session
var ErrNoSession = errors.New("no active tracking session")

const sampleIOTimeout = 5 * time.Second

// HistoryStore persists accepted history entries
type HistoryStore interface {
	Insert(ctx context.Context, patientID string, entry models.LocationHistoryEntry, level models.StatusLevel) error
}

// Broadcaster delivers live updates to subscribers of a patient
type Broadcaster interface {
	Publish(patientID, messageType string, data any)
}

// Config holds session tuning
type Config struct {
	Interval          time.Duration
	Jitter            float64
	RefreshJitter     float64
	StatusTTL         time.Duration
	DeviceTopicPrefix string
}

// Deps are the collaborators a Manager writes to. All are optional.
type Deps struct {
	History     HistoryStore
	KV          cache.KVStore
	Alerts      alert.Publisher
	Broadcaster Broadcaster
	Subscriber  Subscriber
}

// Snapshot is the latest state of a patient's session
type Snapshot struct {
	PatientID  string                 `json:"patientId"`
	Mode       Mode                   `json:"mode"`
	Advisory   string                 `json:"advisory,omitempty"`
	Geofence   models.GeofenceConfig  `json:"geofence"`
	Position   *models.PositionSample `json:"position,omitempty"`
	Status     *models.GeofenceStatus `json:"status,omitempty"`
	Descriptor string                 `json:"descriptor,omitempty"`
	StartedAt  time.Time              `json:"startedAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
	Active     bool                   `json:"active"`
}

type session struct {
	patientID string
	mode      Mode // effective source: device or simulated
	advisory  string
	source    Source
	startedAt time.Time

	mu         sync.Mutex
	geofence   models.GeofenceConfig
	history    []models.LocationHistoryEntry
	latest     *models.PositionSample
	status     *models.GeofenceStatus
	descriptor string
	updatedAt  time.Time
	stopped    bool
}

// lastPoint returns the latest observed point, or the base when nothing was observed
func (s *session) lastPoint() models.GeoPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil {
		return s.latest.Point
	}
	return s.geofence.Base
}

func (s *session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		PatientID:  s.patientID,
		Mode:       s.mode,
		Advisory:   s.advisory,
		Geofence:   s.geofence,
		Descriptor: s.descriptor,
		StartedAt:  s.startedAt,
		UpdatedAt:  s.updatedAt,
		Active:     !s.stopped,
	}
	if s.latest != nil {
		p := *s.latest
		snap.Position = &p
	}
	if s.status != nil {
		st := *s.status
		snap.Status = &st
	}
	return snap
}

// Manager owns one session per tracked patient
type Manager struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
	locks    map[string]*sync.Mutex // per-patient Start/Stop serialization

	now     func() time.Time
	newRand func() *rand.Rand
}

func NewManager(cfg Config, deps Deps, logger *zap.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = 24 * time.Hour
	}
	if cfg.DeviceTopicPrefix == "" {
		cfg.DeviceTopicPrefix = "safetrack/patients"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		logger:   logger.With(zap.String("component", "tracking")),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
}

// Start creates or replaces the session for a patient
func (m *Manager) Start(patientID string, fence models.GeofenceConfig, mode Mode) (*Snapshot, error) {
	if err := geofence.ValidateConfig(fence); err != nil {
		return nil, err
	}

	lock := m.patientLock(patientID)
	lock.Lock()
	defer lock.Unlock()

	startPoint := fence.Base
	if old := m.detach(patientID); old != nil {
		startPoint = old.lastPoint()
		m.stopSession(old)
	}

	s := &session{
		patientID: patientID,
		geofence:  fence,
		startedAt: m.now(),
	}
	s.updatedAt = s.startedAt

	switch mode {
	case ModeDevice, ModeAuto:
		dev := NewDeviceSource(m.deps.Subscriber, DeviceTopic(m.cfg.DeviceTopicPrefix, patientID), m.logger)
		s.mode = ModeDevice
		s.source = dev
		m.attach(s)
		err := dev.Start(m.ctx)
		if err == nil {
			break
		}
		if mode == ModeDevice || !errors.Is(err, ErrDeviceUnavailable) {
			m.detachIf(s)
			return nil, err
		}
		m.logger.Info("falling back to simulated source",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		m.detachIf(s)
		s.advisory = AdvisorySimulationFallback
		fallthrough
	case ModeSimulated:
		sim := NewSimulatedSource(startPoint, SimulatedConfig{
			Interval:      m.cfg.Interval,
			Jitter:        m.cfg.Jitter,
			RefreshJitter: m.cfg.RefreshJitter,
			Rand:          m.newRand(),
			Now:           m.now,
		})
		s.mode = ModeSimulated
		s.source = sim
		m.attach(s)
		if err := sim.Start(m.ctx); err != nil {
			m.detachIf(s)
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	metrics.ActiveSessions.WithLabelValues(string(s.mode)).Inc()
	if s.advisory != "" && m.deps.Broadcaster != nil {
		m.deps.Broadcaster.Publish(patientID, realtime.MessageTypeAdvisory, s.advisory)
	}

	m.logger.Info("tracking session started",
		zap.String("patient_id", patientID),
		zap.String("mode", string(s.mode)),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// attach registers s and routes its source callbacks to it. A different
// session still registered for the patient is stopped.
func (m *Manager) attach(s *session) {
	s.source.OnUpdate(func(sample models.PositionSample) {
		m.handleSample(s, sample)
	})
	m.mu.Lock()
	prev := m.sessions[s.patientID]
	m.sessions[s.patientID] = s
	m.mu.Unlock()
	if prev != nil && prev != s {
		m.stopSession(prev)
	}
}

func (m *Manager) patientLock(patientID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[patientID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[patientID] = l
	}
	return l
}

func (m *Manager) detach(patientID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[patientID]
	if !ok {
		return nil
	}
	delete(m.sessions, patientID)
	return s
}

func (m *Manager) detachIf(s *session) {
	m.mu.Lock()
	if m.sessions[s.patientID] == s {
		delete(m.sessions, s.patientID)
	}
	m.mu.Unlock()
}

func (m *Manager) get(patientID string) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[patientID]
	return s, ok
}

// stopSession marks s stopped and releases its source. The session lock is
// not held while stopping the source so in-flight callbacks can drain.
func (m *Manager) stopSession(s *session) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.source.Stop()
	metrics.ActiveSessions.WithLabelValues(string(s.mode)).Dec()
}

func (m *Manager) handleSample(s *session, sample models.PositionSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	ev := geofence.Evaluate(s.geofence, sample)
	var previous models.StatusLevel
	if s.status != nil {
		previous = s.status.Level
	}

	s.latest = &sample
	s.status = &ev.Status
	s.descriptor = ev.Descriptor
	s.updatedAt = m.now()
	metrics.TrackingSamplesTotal.WithLabelValues(string(ev.Status.Level)).Inc()

	snap := s.snapshotLocked()

	ctx, cancel := context.WithTimeout(m.ctx, sampleIOTimeout)
	defer cancel()

	if m.deps.KV != nil {
		if err := cache.SetJSON(ctx, m.deps.KV, cache.PatientStatusKey(s.patientID), snap, m.cfg.StatusTTL); err != nil {
			m.logger.Warn("failed to cache status", zap.String("patient_id", s.patientID), zap.Error(err))
		}
	}

	entry := geofence.HistoryEntry(sample, ev)
	if history, ok := geofence.Append(s.history, entry); ok {
		s.history = history
		if m.deps.History != nil {
			if err := m.deps.History.Insert(ctx, s.patientID, geofence.Rounded(entry), ev.Status.Level); err != nil {
				m.logger.Error("failed to persist history entry", zap.String("patient_id", s.patientID), zap.Error(err))
			}
		}
	} else {
		metrics.HistorySuppressedTotal.Inc()
	}

	if m.deps.Broadcaster != nil {
		m.deps.Broadcaster.Publish(s.patientID, realtime.MessageTypeStatus, snap)
	}

	if ev.Status.Level == previous || (previous == "" && ev.Status.Level == models.StatusSafe) {
		return
	}

	event := &models.AlertEvent{
		PatientID:      s.patientID,
		Previous:       previous,
		Current:        ev.Status.Level,
		DistanceMeters: math.Round(entry.DistanceMeters),
		Point:          sample.Point,
		ObservedAt:     sample.ObservedAt,
	}
	if m.deps.Alerts != nil {
		if err := m.deps.Alerts.PublishAlert(ctx, event); err != nil {
			m.logger.Error("failed to publish alert", zap.String("patient_id", s.patientID), zap.Error(err))
		} else {
			metrics.AlertsPublishedTotal.WithLabelValues(string(event.Current)).Inc()
		}
	}
	if m.deps.Broadcaster != nil {
		m.deps.Broadcaster.Publish(s.patientID, realtime.MessageTypeAlert, event)
	}
}

// Stop ends the patient's session
func (m *Manager) Stop(patientID string) error {
	lock := m.patientLock(patientID)
	lock.Lock()
	defer lock.Unlock()

	s := m.detach(patientID)
	if s == nil {
		return ErrNoSession
	}
	m.stopSession(s)
	if m.deps.Broadcaster != nil {
		m.deps.Broadcaster.Publish(patientID, realtime.MessageTypeStopped, nil)
	}
	m.logger.Info("tracking session stopped", zap.String("patient_id", patientID))
	return nil
}

// StopAll ends every session; used on shutdown
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		m.stopSession(s)
	}
	m.cancel()
	m.logger.Info("all tracking sessions stopped", zap.Int("count", len(sessions)))
}

// Status returns the live snapshot, or the last cached one (inactive) when
// the patient has no session in this process.
func (m *Manager) Status(ctx context.Context, patientID string) (*Snapshot, error) {
	if s, ok := m.get(patientID); ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.snapshotLocked(), nil
	}

	if m.deps.KV == nil {
		return nil, ErrNoSession
	}
	var snap Snapshot
	if err := cache.GetJSON(ctx, m.deps.KV, cache.PatientStatusKey(patientID), &snap); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	snap.Active = false
	return &snap, nil
}

// History returns a copy of the in-memory history buffer, newest first
func (m *Manager) History(patientID string) ([]models.LocationHistoryEntry, error) {
	s, ok := m.get(patientID)
	if !ok {
		return nil, ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LocationHistoryEntry, len(s.history))
	for i, e := range s.history {
		out[i] = geofence.Rounded(e)
	}
	return out, nil
}

// Refresh forces an immediate simulated step. Device sessions are unchanged.
func (m *Manager) Refresh(patientID string) (*Snapshot, error) {
	s, ok := m.get(patientID)
	if !ok {
		return nil, ErrNoSession
	}
	if sim, ok := s.source.(*SimulatedSource); ok {
		sim.Step()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// UpdateGeofence swaps the config used for subsequent samples. It reports
// whether a session was updated.
func (m *Manager) UpdateGeofence(patientID string, fence models.GeofenceConfig) bool {
	s, ok := m.get(patientID)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.geofence = fence
	s.mu.Unlock()
	return true
}

// Active reports whether the patient has a session in this process
func (m *Manager) Active(patientID string) bool {
	_, ok := m.get(patientID)
	return ok
}
