package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

// Mode is a simulation scenario.
type Mode string

const (
	ModeNormal        Mode = "Normal"
	ModeLocalizedFire Mode = "LocalizedFire"
	ModeHVACFailure   Mode = "HVACFailure"
	ModeChaos         Mode = "Chaos"
	ModeSubZero       Mode = "SubZero"
	ModeSuppression   Mode = "Suppression"
	ModeDrill         Mode = "Drill"
)

// Modes lists every scenario in display order.
var Modes = []Mode{ModeNormal, ModeLocalizedFire, ModeHVACFailure, ModeChaos, ModeSubZero, ModeSuppression, ModeDrill}

// Temperature limits and comfort band in °C.
const (
	MinTemperature   = -40.0
	MaxTemperature   = 200.0
	IdealMin         = 18.0
	IdealMax         = 24.0
	SuppressedTarget = 18.0
	SuppressedMax    = 35.0
)

// ParseMode resolves a mode name case-insensitively. "HVAC_Failure" and
// "RealWorldDrill" are accepted as aliases.
func ParseMode(name string) (Mode, error) {
	key := strings.ToLower(strings.ReplaceAll(name, "_", ""))
	switch key {
	case "realworlddrill":
		return ModeDrill, nil
	}
	for _, m := range Modes {
		if strings.ToLower(string(m)) == key {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown simulation mode %q", name)
}

// Simulator advances the hall one tick at a time. It is safe for concurrent
// use.
type Simulator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	sensors []models.SensorReading
	mode    Mode
	ticks   int

	drillTime float64
	drillX    float64
	drillZ    float64

	logger *zap.Logger
}

// NewSimulator creates a simulator over the reference layout.
func NewSimulator(seed int64, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		rng:     rand.New(rand.NewSource(seed)),
		sensors: Layout(),
		mode:    ModeNormal,
		logger:  logger,
	}
}

// Mode returns the active scenario.
func (s *Simulator) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches scenario.
func (s *Simulator) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m != s.mode {
		s.logger.Info("Simulation mode changed",
			zap.String("from", string(s.mode)),
			zap.String("to", string(m)))
	}
	s.mode = m
}

// Ticks returns the number of completed steps.
func (s *Simulator) Ticks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Sensors returns a copy of the current readings.
func (s *Simulator) Sensors() []models.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copySensors()
}

// SetOffline marks the sensors with the given IDs offline. Unknown IDs are
// reported in the error; known ones are still updated.
func (s *Simulator) SetOffline(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range s.sensors {
		if want[s.sensors[i].ID] {
			s.sensors[i].Status = models.StatusOffline
			delete(want, s.sensors[i].ID)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for id := range want {
			missing = append(missing, id)
		}
		return fmt.Errorf("unknown sensors: %s", strings.Join(missing, ", "))
	}
	return nil
}

// FailRandom takes n random online sensors offline and returns their IDs.
func (s *Simulator) FailRandom(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var online []int
	for i, r := range s.sensors {
		if r.Online() {
			online = append(online, i)
		}
	}
	s.rng.Shuffle(len(online), func(i, j int) { online[i], online[j] = online[j], online[i] })
	if n > len(online) {
		n = len(online)
	}
	ids := make([]string, 0, n)
	for _, idx := range online[:n] {
		s.sensors[idx].Status = models.StatusOffline
		ids = append(ids, s.sensors[idx].ID)
	}
	return ids
}

// Reset restores the initial layout and Normal mode.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensors = Layout()
	s.mode = ModeNormal
	s.ticks = 0
	s.drillTime, s.drillX, s.drillZ = 0, 0, 0
}

// Step advances every sensor by one tick and returns the new readings. Drift
// is set to the applied delta. Suppression falls back to Normal once the
// hottest online sensor has cooled below SuppressedMax.
func (s *Simulator) Step() []models.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeDrill {
		s.drillTime += 0.1
		s.drillX = math.Sin(s.drillTime*0.5) * 20
		s.drillZ = math.Cos(s.drillTime*0.3) * 15
	}

	for i := range s.sensors {
		r := &s.sensors[i]
		d := s.delta(r)
		r.Temperature = clamp(r.Temperature+d, MinTemperature, MaxTemperature)
		r.Drift = d
	}
	s.ticks++

	if s.mode == ModeSuppression && s.maxOnline() < SuppressedMax {
		s.logger.Info("Suppression complete, returning to normal operation", zap.Int("tick", s.ticks))
		s.mode = ModeNormal
	}
	return s.copySensors()
}

// Snapshot wraps the current readings into an analysis request.
func (s *Simulator) Snapshot(focus models.Focus) *models.AnalysisRequest {
	return &models.AnalysisRequest{
		Sensors: s.Sensors(),
		Status:  models.SiteStatus{AnalysisFocus: focus},
	}
}

// Run steps the simulator every interval and hands each snapshot to emit
// until ctx is done or emit fails.
func (s *Simulator) Run(ctx context.Context, interval time.Duration, focus models.Focus, emit func(context.Context, *models.AnalysisRequest) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := ctx.Err(); err != nil {
				return err
			}
			s.Step()
			if err := emit(ctx, s.Snapshot(focus)); err != nil {
				return fmt.Errorf("emit snapshot at tick %d: %w", s.Ticks(), err)
			}
		}
	}
}

func (s *Simulator) delta(r *models.SensorReading) float64 {
	d := (s.rng.Float64() - 0.5) * 0.1

	switch s.mode {
	case ModeDrill:
		dx := r.X - s.drillX
		dz := r.Z - s.drillZ
		distSq := dx*dx + dz*dz
		if distSq < 50 {
			d = 100 / (distSq + 2) * 0.8
		} else {
			d = (22 - r.Temperature) * 0.1
		}
	case ModeLocalizedFire:
		if r.X < -5 && r.X > -15 && r.Z < 0 {
			d = 8.5
		}
	case ModeSubZero:
		if r.X > 10 && r.Z > 5 {
			d = -12
		}
	case ModeHVACFailure:
		d = 0.5 + s.rng.Float64()*0.4
	case ModeSuppression:
		d = (SuppressedTarget - r.Temperature) * 0.5
	case ModeChaos:
		d = (s.rng.Float64() - 0.5) * 30
	default:
		if r.Temperature > IdealMax {
			d = -0.3
		} else if r.Temperature < IdealMin {
			d = 0.3
		}
	}
	return d
}

func (s *Simulator) maxOnline() float64 {
	max := math.Inf(-1)
	for _, r := range s.sensors {
		if r.Online() && r.Temperature > max {
			max = r.Temperature
		}
	}
	return max
}

func (s *Simulator) copySensors() []models.SensorReading {
	out := make([]models.SensorReading, len(s.sensors))
	copy(out, s.sensors)
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
