package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c3-joao/windturbine-backend/internal/infra"
	"github.com/c3-joao/windturbine-backend/internal/infrastructure/repository/postgres"
	_ "github.com/c3-joao/windturbine-backend/internal/pkg/dotenv/autoload"
)

func main() {
	cfg := infra.LoadConfig()
	logger := infra.NewLogger(os.Stdout, "migrate")

	migrationsDir := flag.String("dir", postgres.ResolveMigrationsDir(cfg), "directory with SQL migration files")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !postgres.ShouldCheckDatabase(cfg) {
		logger.Fatalf(ctx, "migrate: no database configured, set DB_DSN or DB_HOST")
	}

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := postgres.WaitForDatabase(waitCtx, cfg, logger); err != nil {
		logger.Fatalf(ctx, "database connectivity check failed: %v", err)
	}

	dsn, err := postgres.BuildDatabaseDSN(cfg)
	if err != nil {
		logger.Fatalf(ctx, "failed to build database DSN: %v", err)
	}

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		logger.Fatalf(ctx, "migrate: %v", err)
	}
	defer db.Close()

	if err := postgres.ApplyMigrations(ctx, db, *migrationsDir, logger); err != nil {
		logger.Fatalf(ctx, "migrate: %v", err)
	}
	logger.Println(ctx, "migrations applied")
}
