// Package simulator drives a remote fleet API with generated readings. It
// polls the active turbines, generates one reading per turbine per cycle and
// submits them in paced batches through the batch ingest endpoint.
package simulator

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
)

const (
	DefaultInterval      = 10 * time.Second
	DefaultBatchSize     = 20
	DefaultBatchPause    = time.Second
	DefaultCooldown      = 30 * time.Second
	DefaultSubmitTimeout = 15 * time.Second
)

var errEmptyFleet = errors.New("no active turbines")

// FleetClient is the remote side of the simulator.
type FleetClient interface {
	ActiveTurbines(ctx context.Context) ([]domain.Turbine, error)
	SubmitReadings(ctx context.Context, readings []domain.Reading) (domain.IngestResult, error)
}

// Logger defines the logging behaviour required by the driver.
type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
	Errorf(ctx context.Context, format string, v ...any)
}

type Config struct {
	Interval      time.Duration
	BatchSize     int
	BatchPause    time.Duration
	Cooldown      time.Duration
	SubmitTimeout time.Duration
	OutlierChance float64
	Now           func() time.Time
	// Wait blocks for d or until ctx is done. Defaults to a timer.
	Wait func(ctx context.Context, d time.Duration) error
}

// CycleResult summarises one simulation cycle.
type CycleResult struct {
	Turbines int
	Batches  int
	Saved    int
	Received int
}

type Driver struct {
	cfg       Config
	client    FleetClient
	generator domain.ReadingGenerator
	weather   domain.WeatherModel
	logger    Logger
}

// New creates a driver. weather may be nil, in which case readings use a
// neutral factor.
func New(cfg Config, client FleetClient, generator domain.ReadingGenerator, weather domain.WeatherModel, logger Logger) *Driver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = DefaultBatchPause
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Wait == nil {
		cfg.Wait = sleep
	}

	return &Driver{
		cfg:       cfg,
		client:    client,
		generator: generator,
		weather:   weather,
		logger:    logger,
	}
}

// Run repeats simulation cycles until ctx is cancelled. A failed cycle is
// retried after the cooldown; Run itself never fails.
func (d *Driver) Run(ctx context.Context) error {
	d.log(ctx, "simulator: starting, interval=%s batch=%d outlierChance=%.1f%%", d.cfg.Interval, d.cfg.BatchSize, d.cfg.OutlierChance)
	for {
		next := d.cfg.Interval
		result, err := d.RunCycle(ctx)
		switch {
		case ctx.Err() != nil:
			d.log(ctx, "simulator: stopping: %v", ctx.Err())
			return nil
		case errors.Is(err, errEmptyFleet):
			d.log(ctx, "simulator: no active turbines found, retrying in %s", d.cfg.Cooldown)
			next = d.cfg.Cooldown
		case err != nil:
			d.errorf(ctx, "simulator: cycle failed, retrying in %s: %v", d.cfg.Cooldown, err)
			next = d.cfg.Cooldown
		default:
			d.log(ctx, "simulator: cycle complete, turbines=%d batches=%d saved=%d/%d", result.Turbines, result.Batches, result.Saved, result.Received)
		}

		if err := d.cfg.Wait(ctx, next); err != nil {
			d.log(ctx, "simulator: stopping: %v", err)
			return nil
		}
	}
}

// RunCycle fetches the active fleet and submits one reading per turbine.
// Consecutive batches are separated by BatchPause, counted from the moment the
// previous submit returned. Shutdown is only checked between batches: a batch
// already generated is always submitted, even after ctx is done.
func (d *Driver) RunCycle(ctx context.Context) (CycleResult, error) {
	var result CycleResult

	turbines, err := d.client.ActiveTurbines(ctx)
	if err != nil {
		return result, err
	}
	if len(turbines) == 0 {
		return result, errEmptyFleet
	}
	result.Turbines = len(turbines)

	factor := 1.0
	if d.weather != nil {
		factor = d.weather.Tick()
	}

	pacer := batchPacer{pause: d.cfg.BatchPause}
	for start := 0; start < len(turbines); start += d.cfg.BatchSize {
		if start > 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if delay := pacer.delay(d.cfg.Now()); delay > 0 {
				if err := d.cfg.Wait(ctx, delay); err != nil {
					return result, err
				}
			}
		}

		end := min(start+d.cfg.BatchSize, len(turbines))
		at := d.cfg.Now()
		readings := make([]domain.Reading, 0, end-start)
		for _, turbine := range turbines[start:end] {
			readings = append(readings, d.generator.Generate(turbine, at, factor, d.cfg.OutlierChance))
		}

		submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.SubmitTimeout)
		ingest, err := d.client.SubmitReadings(submitCtx, readings)
		cancel()
		pacer.submitted(d.cfg.Now())
		if err != nil {
			infra.ObserveSimulatorBatch("failed")
			return result, err
		}
		infra.ObserveSimulatorBatch("submitted")

		result.Batches++
		result.Saved += ingest.SavedCount
		result.Received += ingest.TotalReceived
		d.log(ctx, "simulator: batch %d accepted %d/%d readings, rejected %d", result.Batches, ingest.SavedCount, ingest.TotalReceived, ingest.TotalReceived-ingest.SavedCount)
	}
	return result, nil
}

// batchPacer enforces the gap between two batches of one cycle. Its bucket is
// emptied when a submit returns, so the next token is due a full pause later
// regardless of how long the submit took.
type batchPacer struct {
	pause   time.Duration
	limiter *rate.Limiter
}

func (p *batchPacer) submitted(at time.Time) {
	p.limiter = rate.NewLimiter(rate.Every(p.pause), 1)
	p.limiter.AllowN(at, 1)
}

// delay is how long the next batch must still wait at now.
func (p *batchPacer) delay(now time.Time) time.Duration {
	if p.limiter == nil {
		return 0
	}
	return p.limiter.ReserveN(now, 1).DelayFrom(now)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *Driver) log(ctx context.Context, format string, v ...any) {
	if d.logger == nil {
		return
	}
	d.logger.Printf(ctx, format, v...)
}

func (d *Driver) errorf(ctx context.Context, format string, v ...any) {
	if d.logger == nil {
		return
	}
	d.logger.Errorf(ctx, format, v...)
}
