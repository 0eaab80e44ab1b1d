package main

import (
	"context"
	"io"
	"time"

	"github.com/c3-joao/windturbine-backend/internal/application/fleet"
	"github.com/c3-joao/windturbine-backend/internal/application/generator"
	"github.com/c3-joao/windturbine-backend/internal/application/stream"
	"github.com/c3-joao/windturbine-backend/internal/application/weather"
	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
	"github.com/c3-joao/windturbine-backend/internal/infrastructure/repository/memory"
	"github.com/c3-joao/windturbine-backend/internal/infrastructure/repository/postgres"
)

func provideConfig() infra.Config {
	return infra.LoadConfig()
}

func provideServiceName(cfg infra.Config) string {
	return infra.EmptyFallback(cfg.ServiceName, "windfarm-api")
}

func provideLogger(out io.Writer, serviceName string) *infra.Logger {
	return infra.NewLogger(out, serviceName)
}

// provideRepository picks Postgres when a database is configured and falls back
// to the in-memory store otherwise.
func provideRepository(ctx context.Context, cfg infra.Config, logger *infra.Logger) (domain.Repository, func(), error) {
	if !postgres.ShouldCheckDatabase(cfg) {
		logger.Println(ctx, "no database configured (DB_DSN / DB_HOST), using in-memory storage")
		return memory.New(), func() {}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := postgres.WaitForDatabase(waitCtx, cfg, logger); err != nil {
		logger.Printf(ctx, "database connectivity check failed: %v", err)
	} else {
		logger.Println(ctx, "database connectivity check succeeded")
	}

	return postgres.SetupRepository(ctx, cfg, logger)
}

func provideFleetService(repo domain.Repository, logger *infra.Logger) domain.FleetService {
	return fleet.New(repo, logger)
}

func provideGenerator(cfg infra.Config) *generator.Generator {
	return generator.New(generator.Config{Location: cfg.Location()})
}

func provideWeatherModel(logger *infra.Logger) *weather.Model {
	return weather.NewModel(weather.Config{}, logger)
}

func provideStreamManager(cfg infra.Config, repo domain.Repository, gen *generator.Generator, model *weather.Model, logger *infra.Logger) (*stream.Manager, func()) {
	manager := stream.NewManager(stream.Config{OutlierChance: cfg.StreamOutlierChance}, repo, gen, model, logger)
	return manager, manager.Close
}
