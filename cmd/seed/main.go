package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/c3-joao/windturbine-backend/internal/application/seed"
	"github.com/c3-joao/windturbine-backend/internal/infra"
	"github.com/c3-joao/windturbine-backend/internal/infrastructure/repository/postgres"
	_ "github.com/c3-joao/windturbine-backend/internal/pkg/dotenv/autoload"
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with a fake fleet and historical readings",
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.Int("turbines", 10, "number of turbines to create")
	flags.Int("work-orders", 3, "work orders per turbine")
	flags.Int("days", 7, "days of hourly readings to backfill")
	flags.Uint64("seed", 42, "seed for fake data and readings")
	flags.Int("workers", 4, "backfill worker count")
	flags.Float64("outlier-chance", 2, "percentage of backfilled readings that are outliers")

	viper.SetEnvPrefix("SEED")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := infra.LoadConfig()
	logger := infra.NewLogger(os.Stdout, "seed")

	if !postgres.ShouldCheckDatabase(cfg) {
		return fmt.Errorf("no database configured, set DB_DSN or DB_HOST")
	}
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := postgres.WaitForDatabase(waitCtx, cfg, logger); err != nil {
		return fmt.Errorf("database connectivity check failed: %w", err)
	}

	repo, cleanup, err := postgres.SetupRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	seeder := seed.New(seed.Config{
		Turbines:             viper.GetInt("turbines"),
		WorkOrdersPerTurbine: viper.GetInt("work-orders"),
		Days:                 viper.GetInt("days"),
		Seed:                 viper.GetUint64("seed"),
		Workers:              viper.GetInt("workers"),
		OutlierChance:        viper.GetFloat64("outlier-chance"),
		Location:             cfg.Location(),
	}, repo, logger)

	summary, err := seeder.Run(ctx)
	if err != nil {
		return err
	}
	logger.Printf(ctx, "seed complete: turbines=%d work_orders=%d comments=%d readings=%d failed=%d",
		summary.Turbines, summary.WorkOrders, summary.Comments, summary.Readings, summary.Failed)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
