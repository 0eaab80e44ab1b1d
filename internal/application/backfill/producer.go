// Package backfill fills the reading history of a fleet. A producer walks the
// requested time range and a worker pool persists the generated batches.
package backfill

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

// Logger defines the logging behaviour required by the backfill stages.
type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
}

// Batch is a group of readings persisted with a single write.
type Batch struct {
	ID       string
	Readings []domain.Reading
}

// Config describes the range and shape of generated history.
type Config struct {
	Turbines      []domain.Turbine
	From          time.Time
	To            time.Time
	Step          time.Duration
	BatchSize     int
	OutlierChance float64
	// Weather is ticked once per timestamp when set; otherwise the factor is 1.
	Weather domain.WeatherModel
}

// Producer generates readings for every turbine at each step of the range.
type Producer struct {
	cfg       Config
	generator domain.ReadingGenerator
	logger    Logger
}

// NewProducer creates a configured producer instance.
func NewProducer(cfg Config, generator domain.ReadingGenerator, logger Logger) *Producer {
	if cfg.Step <= 0 {
		cfg.Step = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Producer{cfg: cfg, generator: generator, logger: logger}
}

// Run emits batches until the range is exhausted or ctx is cancelled. The
// output channel is closed once production stops.
func (p *Producer) Run(ctx context.Context, out chan<- Batch) {
	defer close(out)

	if len(p.cfg.Turbines) == 0 || p.cfg.To.Before(p.cfg.From) {
		p.log(ctx, "backfill: nothing to produce")
		return
	}

	pending := make([]domain.Reading, 0, p.cfg.BatchSize)
	flush := func() bool {
		if len(pending) == 0 {
			return true
		}
		batch := Batch{ID: uuid.NewString(), Readings: pending}
		select {
		case <-ctx.Done():
			p.log(ctx, "backfill: stopping before delivering batch: %v", ctx.Err())
			return false
		case out <- batch:
		}
		pending = make([]domain.Reading, 0, p.cfg.BatchSize)
		return true
	}

	for at := p.cfg.From; !at.After(p.cfg.To); at = at.Add(p.cfg.Step) {
		if ctx.Err() != nil {
			p.log(ctx, "backfill: context cancelled: %v", ctx.Err())
			return
		}

		factor := 1.0
		if p.cfg.Weather != nil {
			factor = p.cfg.Weather.Tick()
		}

		for _, turbine := range p.cfg.Turbines {
			pending = append(pending, p.generator.Generate(turbine, at, factor, p.cfg.OutlierChance))
			if len(pending) >= p.cfg.BatchSize && !flush() {
				return
			}
		}
	}
	flush()
}

func (p *Producer) log(ctx context.Context, format string, v ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Printf(ctx, format, v...)
}
