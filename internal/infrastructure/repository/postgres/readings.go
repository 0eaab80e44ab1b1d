package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

const readingColumns = `id, wind_turbine_id, power_kw, recorded_at, is_outlier, outlier_type, created_at`

func scanReading(row rowScanner) (domain.Reading, error) {
	var (
		rd      domain.Reading
		outlier sql.NullString
	)
	if err := row.Scan(&rd.ID, &rd.TurbineID, &rd.PowerKW, &rd.Timestamp, &rd.IsOutlier, &outlier, &rd.CreatedAt); err != nil {
		return domain.Reading{}, err
	}
	rd.OutlierKind = domain.OutlierKind(outlier.String)
	return rd, nil
}

func outlierValue(rd domain.Reading) sql.NullString {
	return sql.NullString{String: string(rd.OutlierKind), Valid: rd.OutlierKind != ""}
}

func (r *Repository) prepareReading(rd domain.Reading) domain.Reading {
	if rd.ID == "" {
		rd.ID = uuid.NewString()
	}
	rd.CreatedAt = r.now()
	if rd.Timestamp.IsZero() {
		rd.Timestamp = rd.CreatedAt
	}
	rd.Timestamp = rd.Timestamp.UTC()
	return rd
}

func (r *Repository) CreateReading(ctx context.Context, rd domain.Reading) (domain.Reading, error) {
	rd = r.prepareReading(rd)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO power_outputs (`+readingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rd.ID, rd.TurbineID, rd.PowerKW, rd.Timestamp, rd.IsOutlier, outlierValue(rd), rd.CreatedAt)
	if err != nil {
		return domain.Reading{}, mapError("create reading", err)
	}
	return rd, nil
}

// CreateReadings streams the batch with COPY inside one transaction.
func (r *Repository) CreateReadings(ctx context.Context, readings []domain.Reading) ([]domain.Reading, error) {
	if len(readings) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError("begin readings batch", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("power_outputs",
		"id", "wind_turbine_id", "power_kw", "recorded_at", "is_outlier", "outlier_type", "created_at"))
	if err != nil {
		return nil, mapError("prepare readings copy", err)
	}

	saved := make([]domain.Reading, 0, len(readings))
	for _, rd := range readings {
		rd = r.prepareReading(rd)
		if _, err := stmt.ExecContext(ctx, rd.ID, rd.TurbineID, rd.PowerKW, rd.Timestamp, rd.IsOutlier, outlierValue(rd), rd.CreatedAt); err != nil {
			_ = stmt.Close()
			return nil, mapError("copy reading", err)
		}
		saved = append(saved, rd)
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return nil, mapError("flush readings copy", err)
	}
	if err := stmt.Close(); err != nil {
		return nil, mapError("close readings copy", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapError("commit readings batch", err)
	}
	return saved, nil
}

// ListReadings returns matching readings, newest first.
func (r *Repository) ListReadings(ctx context.Context, filter domain.ReadingFilter) ([]domain.Reading, int, error) {
	where := &whereBuilder{}
	if filter.TurbineID != "" {
		where.add("wind_turbine_id = ?", filter.TurbineID)
	}
	if !filter.From.IsZero() {
		where.add("recorded_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where.add("recorded_at <= ?", filter.To.UTC())
	}
	switch filter.Outliers {
	case domain.OutliersExclude:
		where.addRaw("NOT is_outlier")
	case domain.OutliersOnly:
		where.addRaw("is_outlier")
	}

	total, err := r.count(ctx, "count readings", "power_outputs", where)
	if err != nil {
		return nil, 0, err
	}

	limit, args := where.page(filter.Page)
	query := fmt.Sprintf("SELECT %s FROM power_outputs%s ORDER BY recorded_at DESC, id%s", readingColumns, where.String(), limit)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError("list readings", err)
	}
	defer rows.Close()

	readings := make([]domain.Reading, 0)
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, 0, mapError("scan reading", err)
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError("list readings", err)
	}
	return readings, total, nil
}
