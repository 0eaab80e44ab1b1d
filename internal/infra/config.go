package infra

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName          string
	HTTPPort             string
	GRPCPort             string
	MetricsPort          string
	DatabaseDSN          string
	DatabaseHost         string
	DatabasePort         string
	DatabaseUser         string
	DatabasePassword     string
	DatabaseName         string
	MigrationsDir        string
	StreamOutlierChance  float64
	StreamDefaultSeconds int
	GeneratorTimezone    string
	KeepAliveSeconds     int
}

func LoadConfig() Config {
	return Config{
		ServiceName:          getEnv("LOG_SERVICE_NAME", "windfarm-api"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		GRPCPort:             getEnv("GRPC_PORT", "50051"),
		MetricsPort:          getEnv("METRICS_PORT", "2112"),
		DatabaseDSN:          os.Getenv("DB_DSN"),
		DatabaseHost:         os.Getenv("DB_HOST"),
		DatabasePort:         os.Getenv("DB_PORT"),
		DatabaseUser:         os.Getenv("DB_USER"),
		DatabasePassword:     os.Getenv("DB_PASSWORD"),
		DatabaseName:         os.Getenv("DB_NAME"),
		MigrationsDir:        os.Getenv("MIGRATIONS_DIR"),
		StreamOutlierChance:  getEnvFloat("STREAM_OUTLIER_CHANCE", 2),
		StreamDefaultSeconds: getEnvInt("STREAM_DEFAULT_INTERVAL", 5),
		GeneratorTimezone:    os.Getenv("GENERATOR_TIMEZONE"),
		KeepAliveSeconds:     getEnvInt("STREAM_KEEPALIVE_SECONDS", 15),
	}
}

// Location resolves GeneratorTimezone, falling back to the host zone.
func (c Config) Location() *time.Location {
	name := strings.TrimSpace(c.GeneratorTimezone)
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func LogConfig(ctx context.Context, logger *Logger, cfg Config) {
	logger.Printf(ctx, "HTTP_PORT=%s", cfg.HTTPPort)
	logger.Printf(ctx, "GRPC_PORT=%s", cfg.GRPCPort)
	logger.Printf(ctx, "METRICS_PORT=%s", EmptyFallback(cfg.MetricsPort, "(disabled)"))
	if cfg.DatabaseDSN != "" {
		logger.Printf(ctx, "DB_DSN set (length %d)", len(cfg.DatabaseDSN))
	} else {
		logger.Println(ctx, "DB_DSN not provided")
	}
	logger.Printf(ctx, "DB_HOST=%s", EmptyFallback(cfg.DatabaseHost, "(not set)"))
	logger.Printf(ctx, "DB_PORT=%s", EmptyFallback(cfg.DatabasePort, "(not set)"))
	logger.Printf(ctx, "DB_USER=%s", EmptyFallback(cfg.DatabaseUser, "(not set)"))
	if cfg.DatabasePassword != "" {
		logger.Println(ctx, "DB_PASSWORD set (redacted)")
	} else {
		logger.Println(ctx, "DB_PASSWORD not provided")
	}
	logger.Printf(ctx, "DB_NAME=%s", EmptyFallback(cfg.DatabaseName, "(not set)"))
	logger.Printf(ctx, "MIGRATIONS_DIR=%s", EmptyFallback(cfg.MigrationsDir, "(default)"))
	logger.Printf(ctx, "STREAM_OUTLIER_CHANCE=%g", cfg.StreamOutlierChance)
	logger.Printf(ctx, "STREAM_DEFAULT_INTERVAL=%d", cfg.StreamDefaultSeconds)
	logger.Printf(ctx, "STREAM_KEEPALIVE_SECONDS=%d", cfg.KeepAliveSeconds)
	logger.Printf(ctx, "GENERATOR_TIMEZONE=%s", cfg.Location())
}

func EmptyFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
