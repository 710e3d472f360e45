package tracking

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jengzang/safetrack-backend-go/internal/models"
	"github.com/jengzang/safetrack-backend-go/internal/spatial"
)

// SimulatedConfig controls the random walk
type SimulatedConfig struct {
	Interval      time.Duration
	Jitter        float64 // max degrees per tick on each axis
	RefreshJitter float64 // max degrees for a forced Step
	Rand          *rand.Rand
	Now           func() time.Time
}

// SimulatedSource perturbs the last point by a uniform random offset on every tick
type SimulatedSource struct {
	cfg SimulatedConfig

	mu      sync.Mutex
	last    models.GeoPoint
	handler func(models.PositionSample)
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

var _ Source = (*SimulatedSource)(nil)

func NewSimulatedSource(start models.GeoPoint, cfg SimulatedConfig) *SimulatedSource {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SimulatedSource{cfg: cfg, last: start}
}

func (s *SimulatedSource) OnUpdate(fn func(models.PositionSample)) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

// Start emits the starting point immediately, then one perturbed point per interval
func (s *SimulatedSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil || s.stopped {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	first := models.PositionSample{Point: s.last, ObservedAt: s.cfg.Now()}
	handler := s.handler
	s.wg.Add(1)
	s.mu.Unlock()

	if handler != nil {
		handler(first)
	}

	go s.run(runCtx)
	return nil
}

func (s *SimulatedSource) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emit(s.cfg.Jitter)
		}
	}
}

// Step forces an immediate sample with the refresh jitter. It returns false
// when the source is stopped.
func (s *SimulatedSource) Step() (models.PositionSample, bool) {
	return s.emit(s.cfg.RefreshJitter)
}

// Last returns the most recently emitted point
func (s *SimulatedSource) Last() models.GeoPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *SimulatedSource) emit(jitter float64) (models.PositionSample, bool) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return models.PositionSample{}, false
	}
	s.last = spatial.Offset(s.last, s.uniform(jitter), s.uniform(jitter))
	sample := models.PositionSample{Point: s.last, ObservedAt: s.cfg.Now()}
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(sample)
	}
	return sample, true
}

// uniform returns a value in [-j, +j]; callers hold s.mu
func (s *SimulatedSource) uniform(j float64) float64 {
	return (s.cfg.Rand.Float64()*2 - 1) * j
}

func (s *SimulatedSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
