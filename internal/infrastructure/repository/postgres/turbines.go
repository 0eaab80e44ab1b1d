package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

const turbineColumns = `id, name, location, model, rated_capacity_kw, is_active, installed_at, created_at, updated_at`

func scanTurbine(row rowScanner) (domain.Turbine, error) {
	var t domain.Turbine
	err := row.Scan(&t.ID, &t.Name, &t.Location, &t.Model, &t.RatedCapacityKW, &t.Active, &t.InstalledAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *Repository) ListTurbines(ctx context.Context, filter domain.TurbineFilter) ([]domain.Turbine, int, error) {
	where := &whereBuilder{}
	if filter.Active != nil {
		where.add("is_active = ?", *filter.Active)
	}
	if filter.Search != "" {
		where.add("(name ILIKE ? OR location ILIKE ? OR model ILIKE ?)", "%"+filter.Search+"%")
	}

	total, err := r.count(ctx, "count turbines", "wind_turbines", where)
	if err != nil {
		return nil, 0, err
	}

	limit, args := where.page(filter.Page)
	rows, err := r.db.QueryContext(ctx, "SELECT "+turbineColumns+" FROM wind_turbines"+where.String()+" ORDER BY name, id"+limit, args...)
	if err != nil {
		return nil, 0, mapError("list turbines", err)
	}
	defer rows.Close()

	turbines := make([]domain.Turbine, 0)
	for rows.Next() {
		t, err := scanTurbine(rows)
		if err != nil {
			return nil, 0, mapError("scan turbine", err)
		}
		turbines = append(turbines, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError("list turbines", err)
	}
	return turbines, total, nil
}

func (r *Repository) TurbineByID(ctx context.Context, id string) (domain.Turbine, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+turbineColumns+" FROM wind_turbines WHERE id = $1", id)
	t, err := scanTurbine(row)
	if err != nil {
		return domain.Turbine{}, mapError("get turbine", err)
	}
	return t, nil
}

// TurbinesByIDs keeps the order of ids.
func (r *Repository) TurbinesByIDs(ctx context.Context, ids []string, activeOnly bool) ([]domain.Turbine, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := "SELECT " + turbineColumns + " FROM wind_turbines WHERE id = ANY($1)"
	if activeOnly {
		query += " AND is_active"
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, mapError("resolve turbines", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Turbine, len(ids))
	for rows.Next() {
		t, err := scanTurbine(rows)
		if err != nil {
			return nil, mapError("scan turbine", err)
		}
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("resolve turbines", err)
	}

	out := make([]domain.Turbine, 0, len(byID))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
			delete(byID, id)
		}
	}
	return out, nil
}

func (r *Repository) CreateTurbine(ctx context.Context, t domain.Turbine) (domain.Turbine, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.InstalledAt.IsZero() {
		t.InstalledAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wind_turbines (`+turbineColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Name, t.Location, t.Model, t.RatedCapacityKW, t.Active, t.InstalledAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return domain.Turbine{}, mapError("create turbine", err)
	}
	return t, nil
}

func (r *Repository) UpdateTurbine(ctx context.Context, t domain.Turbine) (domain.Turbine, error) {
	t.UpdatedAt = r.now()
	row := r.db.QueryRowContext(ctx,
		`UPDATE wind_turbines
SET name = $2, location = $3, model = $4, rated_capacity_kw = $5, is_active = $6, updated_at = $7
WHERE id = $1
RETURNING created_at, installed_at`,
		t.ID, t.Name, t.Location, t.Model, t.RatedCapacityKW, t.Active, t.UpdatedAt)
	if err := row.Scan(&t.CreatedAt, &t.InstalledAt); err != nil {
		return domain.Turbine{}, mapError("update turbine", err)
	}
	return t, nil
}

func (r *Repository) DeleteTurbine(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wind_turbines WHERE id = $1`, id)
	if err != nil {
		return mapError("delete turbine", err)
	}
	return expectOneRow("delete turbine", res)
}
