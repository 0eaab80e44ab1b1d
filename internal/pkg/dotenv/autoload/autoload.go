// Package autoload loads .env on import.
package autoload

import (
	"context"
	"os"

	"github.com/c3-joao/windturbine-backend/internal/infra"
	"github.com/c3-joao/windturbine-backend/internal/pkg/dotenv"
)

func init() {
	if err := dotenv.Load(); err != nil {
		infra.NewLogger(os.Stdout, "autoload").Printf(context.Background(), "dotenv autoload: %v", err)
	}
}
