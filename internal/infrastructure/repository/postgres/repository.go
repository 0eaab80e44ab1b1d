// Package postgres implements the fleet repository on top of database/sql and
// the lib/pq driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

type Repository struct {
	db     *sql.DB
	logger *infra.Logger
	now    func() time.Time
}

func New(db *sql.DB, logger *infra.Logger) *Repository {
	return &Repository{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// mapError translates driver errors into domain errors.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %s: %w", op, pqErr.Detail, domain.ErrNotFound)
		case pqUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pqErr.Detail, domain.ErrConflict)
		}
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

// whereBuilder collects AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereBuilder) addRaw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause with its args.
func (w *whereBuilder) page(p domain.Page) (string, []any) {
	p = p.Normalize()
	n := len(w.args)
	args := append(append([]any(nil), w.args...), p.Size, p.Offset())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), args
}

func (r *Repository) count(ctx context.Context, op, table string, where *whereBuilder) (int, error) {
	var total int
	query := "SELECT COUNT(*) FROM " + table + where.String()
	if err := r.db.QueryRowContext(ctx, query, where.args...).Scan(&total); err != nil {
		return 0, mapError(op, err)
	}
	return total, nil
}

func expectOneRow(op string, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
