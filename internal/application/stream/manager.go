// Package stream fans simulated power readings out to live subscribers.
//
// Every subscription runs its own goroutine: it sends a connected event, runs
// one generation cycle immediately and then one cycle per interval with
// fixed-delay scheduling, so cycles of one subscription never overlap. The
// weather model is the only state shared between subscriptions.
package stream

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
)

// Store is the persistence needed by a generation cycle.
type Store interface {
	TurbinesByIDs(ctx context.Context, ids []string, activeOnly bool) ([]domain.Turbine, error)
	CreateReading(ctx context.Context, reading domain.Reading) (domain.Reading, error)
}

type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
	Warnf(ctx context.Context, format string, v ...any)
	Errorf(ctx context.Context, format string, v ...any)
}

type Config struct {
	// OutlierChance is the percentage of readings replaced by simulated faults.
	OutlierChance float64
	// IntervalUnit scales IntervalSeconds. Defaults to time.Second.
	IntervalUnit time.Duration
	Now          func() time.Time
}

type Manager struct {
	store     Store
	generator domain.ReadingGenerator
	weather   domain.WeatherModel
	logger    Logger
	cfg       Config

	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewManager(cfg Config, store Store, generator domain.ReadingGenerator, weather domain.WeatherModel, logger Logger) *Manager {
	if cfg.IntervalUnit <= 0 {
		cfg.IntervalUnit = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{
		store:     store,
		generator: generator,
		weather:   weather,
		logger:    logger,
		cfg:       cfg,
		subs:      make(map[string]*Subscription),
	}
}

// Subscribe validates req and starts a subscription bound to ctx. It stops
// when ctx is cancelled, on Unsubscribe, or on Close.
func (m *Manager) Subscribe(ctx context.Context, req Request, sink Sink) (*Subscription, error) {
	req, err := NormalizeRequest(req)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("stream: sink is required")
	}

	subCtx, cancel := context.WithCancelCause(ctx)
	sub := &Subscription{
		ID:              uuid.NewString(),
		TurbineIDs:      req.TurbineIDs,
		IntervalSeconds: req.IntervalSeconds,
		StartedAt:       m.cfg.Now(),
		cancel:          cancel,
		done:            make(chan struct{}),
	}

	m.mu.Lock()
	m.subs[sub.ID] = sub
	m.mu.Unlock()
	infra.SubscriptionOpened()

	go m.run(subCtx, sub, sink)
	return sub, nil
}

// Unsubscribe stops the subscription and waits until it has been removed.
// It must not be called from inside a Sink.
func (m *Manager) Unsubscribe(id string) error {
	m.mu.RLock()
	sub, ok := m.subs[id]
	m.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}

	sub.cancel(ErrUnsubscribed)
	<-sub.done
	return nil
}

// Close stops every subscription.
func (m *Manager) Close() {
	m.mu.RLock()
	subs := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.cancel(ErrShutdown)
	}
	for _, sub := range subs {
		<-sub.done
	}
}

// Active returns a snapshot of the live subscriptions, oldest first.
func (m *Manager) Active() []Info {
	now := m.cfg.Now()

	m.mu.RLock()
	infos := make([]Info, 0, len(m.subs))
	for _, sub := range m.subs {
		infos = append(infos, Info{
			ID:              sub.ID,
			TurbineIDs:      append([]string(nil), sub.TurbineIDs...),
			IntervalSeconds: sub.IntervalSeconds,
			StartedAt:       sub.StartedAt,
			UptimeSeconds:   math.Max(0, now.Sub(sub.StartedAt).Seconds()),
		})
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *Manager) run(ctx context.Context, sub *Subscription, sink Sink) {
	defer m.remove(ctx, sub)

	m.logf(ctx, "stream: connection %s opened for %d turbines every %ds", sub.ID, len(sub.TurbineIDs), sub.IntervalSeconds)
	_ = m.emit(ctx, sub, sink, Event{Name: EventConnected, Data: ConnectedPayload{
		ConnectionID:    sub.ID,
		IntervalSeconds: sub.IntervalSeconds,
		TurbineIDs:      sub.TurbineIDs,
		TurbineCount:    len(sub.TurbineIDs),
	}})

	interval := time.Duration(sub.IntervalSeconds) * m.cfg.IntervalUnit
	timer := time.NewTimer(interval)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		m.cycle(ctx, sub, sink)

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

func (m *Manager) cycle(ctx context.Context, sub *Subscription, sink Sink) {
	start := time.Now()
	reason := ""
	defer func() { infra.ObserveStreamCycle(time.Since(start), reason) }()

	turbines, err := m.store.TurbinesByIDs(ctx, sub.TurbineIDs, true)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		reason = "persistence"
		m.fail(ctx, sub, sink, &domain.PersistenceError{Op: "resolve turbines", Err: err}, "failed to load turbines")
		return
	}

	factor := m.weather.Tick()
	at := m.cfg.Now()

	readings := make([]PowerReading, 0, len(turbines))
	for _, turbine := range turbines {
		reading, err := m.generate(turbine, at, factor)
		if err != nil {
			reason = "generation"
			m.fail(ctx, sub, sink, err, "failed to generate power readings")
			return
		}

		saved, err := m.store.CreateReading(ctx, reading)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			reason = "persistence"
			m.fail(ctx, sub, sink, &domain.PersistenceError{Op: "create reading", Err: err}, "failed to persist power readings")
			return
		}
		infra.ObserveReading(string(saved.OutlierKind))
		readings = append(readings, toPowerReading(turbine, saved))
	}

	err = m.emit(ctx, sub, sink, Event{Name: EventPowerOutput, Data: PowerOutputPayload{
		Timestamp:    at,
		TurbineCount: len(readings),
		Readings:     readings,
	}})
	if err != nil && ctx.Err() == nil {
		reason = "transport"
	}
}

func (m *Manager) generate(turbine domain.Turbine, at time.Time, factor float64) (reading domain.Reading, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &domain.GenerationError{TurbineID: turbine.ID, Cause: rec}
		}
	}()
	return m.generator.Generate(turbine, at, factor, m.cfg.OutlierChance), nil
}

func (m *Manager) fail(ctx context.Context, sub *Subscription, sink Sink, err error, message string) {
	if m.logger != nil {
		m.logger.Errorf(ctx, "stream: connection %s cycle failed: %v", sub.ID, err)
	}
	_ = m.emit(ctx, sub, sink, Event{Name: EventError, Data: ErrorPayload{Message: message}})
}

// emit pushes one event unless the subscription is already stopping. A failed
// push is followed by a best-effort error event.
func (m *Manager) emit(ctx context.Context, sub *Subscription, sink Sink, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := sink.Send(ctx, event); err != nil {
		tErr := &domain.TransportError{Op: "send " + event.Name, Err: err}
		if m.logger != nil && ctx.Err() == nil {
			m.logger.Warnf(ctx, "stream: connection %s: %v", sub.ID, tErr)
		}
		if event.Name != EventError && ctx.Err() == nil {
			_ = sink.Send(ctx, Event{Name: EventError, Data: ErrorPayload{Message: "failed to deliver " + event.Name}})
		}
		return tErr
	}
	return nil
}

func (m *Manager) remove(ctx context.Context, sub *Subscription) {
	m.mu.Lock()
	delete(m.subs, sub.ID)
	m.mu.Unlock()
	infra.SubscriptionClosed()

	cause := context.Cause(ctx)
	sub.cancel(nil)
	uptime := m.cfg.Now().Sub(sub.StartedAt).Round(time.Millisecond)

	if m.logger != nil {
		if isGraceful(cause) {
			m.logger.Printf(ctx, "stream: connection %s disconnected after %s", sub.ID, uptime)
		} else {
			m.logger.Warnf(ctx, "stream: connection %s disconnected unexpectedly after %s: %v", sub.ID, uptime, cause)
		}
	}
	close(sub.done)
}

func (m *Manager) logf(ctx context.Context, format string, v ...any) {
	if m.logger != nil {
		m.logger.Printf(ctx, format, v...)
	}
}

func toPowerReading(turbine domain.Turbine, reading domain.Reading) PowerReading {
	return PowerReading{
		TurbineID:       turbine.ID,
		TurbineName:     turbine.Name,
		PowerKW:         reading.PowerKW,
		RatedCapacityKW: turbine.RatedCapacityKW,
		Efficiency:      Efficiency(reading.PowerKW, turbine.RatedCapacityKW),
		Timestamp:       reading.Timestamp,
		IsOutlier:       reading.IsOutlier,
		OutlierType:     string(reading.OutlierKind),
	}
}

// Efficiency is power as a percentage of rated capacity, rounded to 2 decimals.
func Efficiency(powerKW, ratedKW float64) float64 {
	if ratedKW <= 0 {
		return 0
	}
	return math.Round(powerKW/ratedKW*100*100) / 100
}
