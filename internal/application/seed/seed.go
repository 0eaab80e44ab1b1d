// Package seed populates a repository with a fake fleet and its history.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/c3-joao/windturbine-backend/internal/application/backfill"
	"github.com/c3-joao/windturbine-backend/internal/application/generator"
	"github.com/c3-joao/windturbine-backend/internal/domain"
)

// Logger defines the logging behaviour required by the seeder.
type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
}

type Config struct {
	Turbines             int
	WorkOrdersPerTurbine int
	Days                 int
	Seed                 uint64
	Workers              int
	OutlierChance        float64
	Location             *time.Location
	Now                  func() time.Time
}

// Summary reports what a seeding run created.
type Summary struct {
	Turbines   int
	WorkOrders int
	Comments   int
	Readings   int64
	Failed     int64
}

type turbineSpec struct {
	Site     string `fake:"{city}"`
	Family   string `fake:"{lastname}"`
	Model    string `fake:"{randomstring:[V90,V112,SWT-2300,GE-1500,N117,E-82]}"`
	Capacity int    `fake:"{number:1500,5000}"`
	AgeDays  int    `fake:"{number:90,3650}"`
	Inactive int    `fake:"{number:1,10}"`
}

type workOrderSpec struct {
	Title       string `fake:"{hackerphrase}"`
	Description string `fake:"{sentence:12}"`
	Status      string `fake:"{randomstring:[open,in_progress,completed,cancelled]}"`
	Priority    string `fake:"{randomstring:[low,medium,high,critical]}"`
	AssignedTo  string `fake:"{name}"`
	DueInDays   int    `fake:"{number:0,70}"`
	Note        string `fake:"{sentence:8}"`
	Author      string `fake:"{firstname}"`
}

// Seeder creates turbines and work orders and backfills readings.
type Seeder struct {
	cfg    Config
	repo   domain.Repository
	faker  *gofakeit.Faker
	logger Logger
}

func New(cfg Config, repo domain.Repository, logger Logger) *Seeder {
	if cfg.Turbines <= 0 {
		cfg.Turbines = 10
	}
	if cfg.WorkOrdersPerTurbine < 0 {
		cfg.WorkOrdersPerTurbine = 0
	}
	if cfg.Days < 0 {
		cfg.Days = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Seeder{cfg: cfg, repo: repo, faker: gofakeit.New(cfg.Seed), logger: logger}
}

// Run seeds the repository. Readings are generated hourly for the last
// cfg.Days days with a generator seeded from cfg.Seed.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	now := s.cfg.Now().Truncate(time.Hour)

	turbines := make([]domain.Turbine, 0, s.cfg.Turbines)
	for i := 0; i < s.cfg.Turbines; i++ {
		var spec turbineSpec
		if err := s.faker.Struct(&spec); err != nil {
			return summary, fmt.Errorf("fake turbine: %w", err)
		}

		turbine, err := s.repo.CreateTurbine(ctx, domain.Turbine{
			Name:            fmt.Sprintf("%s-%02d", spec.Family, i+1),
			Location:        spec.Site,
			Model:           spec.Model,
			RatedCapacityKW: float64(spec.Capacity),
			Active:          spec.Inactive > 1,
			InstalledAt:     now.AddDate(0, 0, -spec.AgeDays),
		})
		if err != nil {
			return summary, fmt.Errorf("create turbine: %w", err)
		}
		turbines = append(turbines, turbine)
		summary.Turbines++

		for j := 0; j < s.cfg.WorkOrdersPerTurbine; j++ {
			comments, err := s.createWorkOrder(ctx, turbine, now)
			if err != nil {
				return summary, err
			}
			summary.WorkOrders++
			summary.Comments += comments
		}
	}
	s.log(ctx, "seed: created %d turbines and %d work orders", summary.Turbines, summary.WorkOrders)

	if s.cfg.Days == 0 {
		return summary, nil
	}

	gen := generator.New(generator.Config{Location: s.cfg.Location, Source: generator.SeededSource(s.cfg.Seed)})
	producer := backfill.NewProducer(backfill.Config{
		Turbines:      turbines,
		From:          now.AddDate(0, 0, -s.cfg.Days),
		To:            now,
		Step:          time.Hour,
		OutlierChance: s.cfg.OutlierChance,
	}, gen, s.logger)

	batches := make(chan backfill.Batch, s.cfg.Workers)
	go producer.Run(ctx, batches)
	stats := backfill.NewPool(s.cfg.Workers, s.repo, s.logger).Run(ctx, batches)

	summary.Readings = stats.Saved
	summary.Failed = stats.Failed
	s.log(ctx, "seed: backfilled %d readings over %d days (%d failed)", stats.Saved, s.cfg.Days, stats.Failed)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Seeder) createWorkOrder(ctx context.Context, turbine domain.Turbine, now time.Time) (int, error) {
	var spec workOrderSpec
	if err := s.faker.Struct(&spec); err != nil {
		return 0, fmt.Errorf("fake work order: %w", err)
	}

	due := now.AddDate(0, 0, spec.DueInDays-10)
	order, err := s.repo.CreateWorkOrder(ctx, domain.WorkOrder{
		TurbineID:   turbine.ID,
		Title:       spec.Title,
		Description: spec.Description,
		Status:      domain.WorkOrderStatus(spec.Status),
		Priority:    domain.WorkOrderPriority(spec.Priority),
		AssignedTo:  spec.AssignedTo,
		DueDate:     &due,
	})
	if err != nil {
		return 0, fmt.Errorf("create work order: %w", err)
	}

	if order.Status == domain.StatusOpen {
		return 0, nil
	}
	if _, err := s.repo.CreateComment(ctx, domain.Comment{WorkOrderID: order.ID, Author: spec.Author, Body: spec.Note}); err != nil {
		return 0, fmt.Errorf("create comment: %w", err)
	}
	return 1, nil
}

func (s *Seeder) log(ctx context.Context, format string, v ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(ctx, format, v...)
}
