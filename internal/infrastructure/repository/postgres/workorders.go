package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

const workOrderColumns = `id, wind_turbine_id, title, description, status, priority, assigned_to, due_date, created_at, updated_at`

func scanWorkOrder(row rowScanner) (domain.WorkOrder, error) {
	var (
		wo  domain.WorkOrder
		due sql.NullTime
	)
	err := row.Scan(&wo.ID, &wo.TurbineID, &wo.Title, &wo.Description, &wo.Status, &wo.Priority, &wo.AssignedTo, &due, &wo.CreatedAt, &wo.UpdatedAt)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if due.Valid {
		d := due.Time
		wo.DueDate = &d
	}
	return wo, nil
}

func dueValue(wo domain.WorkOrder) sql.NullTime {
	if wo.DueDate == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: wo.DueDate.UTC(), Valid: true}
}

func (r *Repository) ListWorkOrders(ctx context.Context, filter domain.WorkOrderFilter) ([]domain.WorkOrder, int, error) {
	where := &whereBuilder{}
	if filter.TurbineID != "" {
		where.add("wind_turbine_id = ?", filter.TurbineID)
	}
	if filter.Status != "" {
		where.add("status = ?", string(filter.Status))
	}
	if filter.Priority != "" {
		where.add("priority = ?", string(filter.Priority))
	}

	total, err := r.count(ctx, "count work orders", "work_orders", where)
	if err != nil {
		return nil, 0, err
	}

	limit, args := where.page(filter.Page)
	rows, err := r.db.QueryContext(ctx, "SELECT "+workOrderColumns+" FROM work_orders"+where.String()+" ORDER BY created_at DESC, id"+limit, args...)
	if err != nil {
		return nil, 0, mapError("list work orders", err)
	}
	defer rows.Close()

	orders := make([]domain.WorkOrder, 0)
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, 0, mapError("scan work order", err)
		}
		orders = append(orders, wo)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError("list work orders", err)
	}
	return orders, total, nil
}

func (r *Repository) WorkOrderByID(ctx context.Context, id string) (domain.WorkOrder, error) {
	wo, err := scanWorkOrder(r.db.QueryRowContext(ctx, "SELECT "+workOrderColumns+" FROM work_orders WHERE id = $1", id))
	if err != nil {
		return domain.WorkOrder{}, mapError("get work order", err)
	}
	return wo, nil
}

func (r *Repository) CreateWorkOrder(ctx context.Context, wo domain.WorkOrder) (domain.WorkOrder, error) {
	if wo.ID == "" {
		wo.ID = uuid.NewString()
	}
	now := r.now()
	wo.CreatedAt, wo.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO work_orders (`+workOrderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		wo.ID, wo.TurbineID, wo.Title, wo.Description, string(wo.Status), string(wo.Priority), wo.AssignedTo, dueValue(wo), wo.CreatedAt, wo.UpdatedAt)
	if err != nil {
		return domain.WorkOrder{}, mapError("create work order", err)
	}
	return wo, nil
}

func (r *Repository) UpdateWorkOrder(ctx context.Context, wo domain.WorkOrder) (domain.WorkOrder, error) {
	wo.UpdatedAt = r.now()
	row := r.db.QueryRowContext(ctx,
		`UPDATE work_orders
SET title = $2, description = $3, status = $4, priority = $5, assigned_to = $6, due_date = $7, updated_at = $8
WHERE id = $1
RETURNING wind_turbine_id, created_at`,
		wo.ID, wo.Title, wo.Description, string(wo.Status), string(wo.Priority), wo.AssignedTo, dueValue(wo), wo.UpdatedAt)
	if err := row.Scan(&wo.TurbineID, &wo.CreatedAt); err != nil {
		return domain.WorkOrder{}, mapError("update work order", err)
	}
	return wo, nil
}

func (r *Repository) DeleteWorkOrder(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM work_orders WHERE id = $1`, id)
	if err != nil {
		return mapError("delete work order", err)
	}
	return expectOneRow("delete work order", res)
}

func (r *Repository) ListComments(ctx context.Context, workOrderID string) ([]domain.Comment, error) {
	if _, err := r.WorkOrderByID(ctx, workOrderID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, work_order_id, author, body, created_at FROM work_order_comments WHERE work_order_id = $1 ORDER BY created_at, id`,
		workOrderID)
	if err != nil {
		return nil, mapError("list comments", err)
	}
	defer rows.Close()

	comments := make([]domain.Comment, 0)
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.WorkOrderID, &c.Author, &c.Body, &c.CreatedAt); err != nil {
			return nil, mapError("scan comment", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list comments", err)
	}
	return comments, nil
}

func (r *Repository) CreateComment(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = r.now()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO work_order_comments (id, work_order_id, author, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.WorkOrderID, c.Author, c.Body, c.CreatedAt)
	if err != nil {
		return domain.Comment{}, mapError("create comment", err)
	}
	return c, nil
}

var _ domain.Repository = (*Repository)(nil)
