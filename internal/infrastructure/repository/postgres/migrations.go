package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/c3-joao/windturbine-backend/internal/infra"
)

const defaultMigrationsDir = "db/migrations"

// Execer runs a statement without returning rows.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ResolveMigrationsDir returns MIGRATIONS_DIR or the bundled default.
func ResolveMigrationsDir(cfg infra.Config) string {
	if dir := strings.TrimSpace(cfg.MigrationsDir); dir != "" {
		return dir
	}
	return defaultMigrationsDir
}

// ApplyMigrations executes the .sql files in dir in lexical order. Files are
// expected to be idempotent.
func ApplyMigrations(ctx context.Context, db Execer, dir string, logger *infra.Logger) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("migrations directory is not specified")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations directory %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	if len(files) == 0 {
		logger.Printf(ctx, "no migrations found in %s", dir)
		return nil
	}

	for _, name := range files {
		contents, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}

		statements := strings.TrimSpace(string(contents))
		if statements == "" {
			logger.Printf(ctx, "skipping empty migration %s", name)
			continue
		}

		logger.Printf(ctx, "applying migration %s", name)
		if _, err := db.ExecContext(ctx, statements); err != nil {
			return fmt.Errorf("apply migration %q: %w", name, err)
		}
	}

	logger.Println(ctx, "migrations applied successfully")
	return nil
}
