package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/c3-joao/windturbine-backend/internal/application/generator"
	"github.com/c3-joao/windturbine-backend/internal/application/simulator"
	"github.com/c3-joao/windturbine-backend/internal/application/weather"
	"github.com/c3-joao/windturbine-backend/internal/infra"
	"github.com/c3-joao/windturbine-backend/internal/infrastructure/fleetapi"
	_ "github.com/c3-joao/windturbine-backend/internal/pkg/dotenv/autoload"
)

var rootCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Generate readings for every active turbine and submit them to the API",
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.Int("interval", 10, "seconds between simulation cycles")
	flags.Float64("outlier-chance", 5, "percentage of readings replaced by simulated faults")
	flags.String("api-base-url", "http://localhost:8080", "base URL of the windfarm API")
	flags.String("timezone", "", "IANA zone used for the diurnal curve (default local)")

	for key, env := range map[string]string{
		"interval":       "SIMULATION_INTERVAL",
		"outlier-chance": "OUTLIER_CHANCE",
		"api-base-url":   "API_BASE_URL",
		"timezone":       "GENERATOR_TIMEZONE",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			panic(err)
		}
	}
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := infra.NewLogger(os.Stdout, "simulator")
	interval := time.Duration(viper.GetInt("interval")) * time.Second
	baseURL := viper.GetString("api-base-url")
	outlierChance := viper.GetFloat64("outlier-chance")

	cfg := infra.Config{GeneratorTimezone: viper.GetString("timezone")}
	logger.Printf(ctx, "simulator starting: api=%s interval=%s outlier_chance=%g%% timezone=%s",
		baseURL, interval, outlierChance, cfg.Location())

	driver := simulator.New(
		simulator.Config{Interval: interval, OutlierChance: outlierChance},
		fleetapi.New(fleetapi.Config{BaseURL: baseURL}),
		generator.New(generator.Config{Location: cfg.Location()}),
		weather.NewModel(weather.Config{}, logger),
		logger,
	)
	err := driver.Run(ctx)
	logger.Println(ctx, "simulator stopped")
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
