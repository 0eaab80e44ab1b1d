// Package weather holds the process-wide weather narrative that biases
// generated readings.
package weather

import (
	"context"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/c3-joao/windturbine-backend/internal/application/generator"
	"github.com/c3-joao/windturbine-backend/internal/domain"
)

// DefaultSpawnProbability is the per-cycle chance of a new event while idle.
const DefaultSpawnProbability = 0.05

type profile struct {
	factor   float64
	duration int
}

var profiles = map[domain.EventKind]profile{
	domain.EventStorm:             {factor: 0.2, duration: 5},
	domain.EventHighPressure:      {factor: 1.5, duration: 10},
	domain.EventMaintenanceWindow: {factor: 0.0, duration: 3},
}

// Kinds lists the event kinds in spawn order.
var Kinds = []domain.EventKind{
	domain.EventStorm,
	domain.EventHighPressure,
	domain.EventMaintenanceWindow,
}

type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
}

type Config struct {
	// SpawnProbability overrides DefaultSpawnProbability when set. Negative disables spawning.
	SpawnProbability float64
	Source           rand.Source
}

// Model tracks at most one active WeatherEvent. All methods are safe for
// concurrent use.
type Model struct {
	mu     sync.Mutex
	event  *domain.WeatherEvent
	spawn  distuv.Bernoulli
	pick   distuv.Uniform
	logger Logger
}

func NewModel(cfg Config, logger Logger) *Model {
	p := cfg.SpawnProbability
	switch {
	case p == 0:
		p = DefaultSpawnProbability
	case p < 0:
		p = 0
	case p > 1:
		p = 1
	}

	src := generator.NewLockedSource(cfg.Source)
	return &Model{
		spawn:  distuv.Bernoulli{P: p, Src: src},
		pick:   distuv.Uniform{Min: 0, Max: float64(len(Kinds)), Src: src},
		logger: logger,
	}
}

// Tick advances the model by one generation cycle and returns the output
// factor for that cycle. A spawned event applies to the cycle it spawns in;
// the cycle in which an event ends still returns its factor.
func (m *Model) Tick() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.event == nil && m.spawn.Rand() == 1 {
		idx := int(m.pick.Rand())
		if idx >= len(Kinds) {
			idx = len(Kinds) - 1
		}
		m.start(Kinds[idx])
	}

	if m.event == nil {
		return 1.0
	}

	factor := m.event.OutputFactor
	m.event.RemainingCycles--
	if m.event.RemainingCycles <= 0 {
		m.log("weather: %s ended", m.event.Kind)
		m.event = nil
	}
	return factor
}

// Current returns a copy of the active event, if any.
func (m *Model) Current() (domain.WeatherEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.event == nil {
		return domain.WeatherEvent{}, false
	}
	return *m.event, true
}

// Trigger replaces any active event with a fresh one of the given kind.
func (m *Model) Trigger(kind domain.EventKind) (domain.WeatherEvent, error) {
	if _, ok := profiles[kind]; !ok {
		return domain.WeatherEvent{}, domain.NewValidationError("kind", "unknown weather event %q", kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.start(kind)
	return *m.event, nil
}

// Clear ends the active event immediately.
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.event != nil {
		m.log("weather: %s cleared", m.event.Kind)
	}
	m.event = nil
}

func (m *Model) start(kind domain.EventKind) {
	p := profiles[kind]
	m.event = &domain.WeatherEvent{Kind: kind, OutputFactor: p.factor, RemainingCycles: p.duration}
	m.log("weather: %s started (factor %.1f, %d cycles)", kind, p.factor, p.duration)
}

func (m *Model) log(format string, v ...any) {
	if m.logger != nil {
		m.logger.Printf(context.Background(), format, v...)
	}
}

var _ domain.WeatherModel = (*Model)(nil)
