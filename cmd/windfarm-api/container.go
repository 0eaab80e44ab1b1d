package main

import (
	"github.com/c3-joao/windturbine-backend/internal/application/stream"
	"github.com/c3-joao/windturbine-backend/internal/application/weather"
	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
)

type application struct {
	Config  infra.Config
	Logger  *infra.Logger
	Service domain.FleetService
	Streams *stream.Manager
	Weather *weather.Model
}

func newApplication(cfg infra.Config, logger *infra.Logger, service domain.FleetService, streams *stream.Manager, model *weather.Model) *application {
	return &application{
		Config:  cfg,
		Logger:  logger,
		Service: service,
		Streams: streams,
		Weather: model,
	}
}
