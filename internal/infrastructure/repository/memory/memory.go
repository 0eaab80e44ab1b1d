// Package memory keeps the fleet in process memory. It backs local runs
// without a database and the application tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

type Repository struct {
	mu         sync.RWMutex
	turbines   map[string]domain.Turbine
	readings   []domain.Reading
	workOrders map[string]domain.WorkOrder
	comments   map[string][]domain.Comment
	now        func() time.Time
}

func New() *Repository {
	return &Repository{
		turbines:   make(map[string]domain.Turbine),
		workOrders: make(map[string]domain.WorkOrder),
		comments:   make(map[string][]domain.Comment),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) Close() error { return nil }

func (r *Repository) ListTurbines(_ context.Context, filter domain.TurbineFilter) ([]domain.Turbine, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]domain.Turbine, 0, len(r.turbines))
	for _, t := range r.turbines {
		if filter.Active != nil && t.Active != *filter.Active {
			continue
		}
		if search != "" && !turbineMatches(t, search) {
			continue
		}
		matched = append(matched, t)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name == matched[j].Name {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Name < matched[j].Name
	})

	start, end := filter.Page.Bounds(len(matched))
	return matched[start:end], len(matched), nil
}

func turbineMatches(t domain.Turbine, search string) bool {
	for _, field := range []string{t.Name, t.Location, t.Model} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (r *Repository) TurbineByID(_ context.Context, id string) (domain.Turbine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.turbines[id]
	if !ok {
		return domain.Turbine{}, domain.ErrNotFound
	}
	return t, nil
}

func (r *Repository) TurbinesByIDs(_ context.Context, ids []string, activeOnly bool) ([]domain.Turbine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Turbine, 0, len(ids))
	for _, id := range ids {
		t, ok := r.turbines[id]
		if !ok || (activeOnly && !t.Active) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Repository) CreateTurbine(_ context.Context, t domain.Turbine) (domain.Turbine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, exists := r.turbines[t.ID]; exists {
		return domain.Turbine{}, fmt.Errorf("turbine %s: %w", t.ID, domain.ErrConflict)
	}
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.InstalledAt.IsZero() {
		t.InstalledAt = now
	}
	r.turbines[t.ID] = t
	return t, nil
}

func (r *Repository) UpdateTurbine(_ context.Context, t domain.Turbine) (domain.Turbine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.turbines[t.ID]
	if !ok {
		return domain.Turbine{}, domain.ErrNotFound
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = r.now()
	r.turbines[t.ID] = t
	return t, nil
}

// DeleteTurbine removes the turbine together with its readings and work orders.
func (r *Repository) DeleteTurbine(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.turbines[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.turbines, id)

	kept := r.readings[:0]
	for _, reading := range r.readings {
		if reading.TurbineID != id {
			kept = append(kept, reading)
		}
	}
	r.readings = kept

	for woID, wo := range r.workOrders {
		if wo.TurbineID == id {
			delete(r.workOrders, woID)
			delete(r.comments, woID)
		}
	}
	return nil
}

func (r *Repository) CreateReading(_ context.Context, reading domain.Reading) (domain.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.appendReading(reading)
}

// CreateReadings is all-or-nothing: an unknown turbine rejects the whole batch.
func (r *Repository) CreateReadings(_ context.Context, readings []domain.Reading) ([]domain.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reading := range readings {
		if _, ok := r.turbines[reading.TurbineID]; !ok {
			return nil, fmt.Errorf("turbine %s: %w", reading.TurbineID, domain.ErrNotFound)
		}
	}

	saved := make([]domain.Reading, 0, len(readings))
	for _, reading := range readings {
		stored, err := r.appendReading(reading)
		if err != nil {
			return nil, err
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

func (r *Repository) appendReading(reading domain.Reading) (domain.Reading, error) {
	if _, ok := r.turbines[reading.TurbineID]; !ok {
		return domain.Reading{}, fmt.Errorf("turbine %s: %w", reading.TurbineID, domain.ErrNotFound)
	}
	if reading.ID == "" {
		reading.ID = uuid.NewString()
	}
	reading.CreatedAt = r.now()
	if reading.Timestamp.IsZero() {
		reading.Timestamp = reading.CreatedAt
	}
	r.readings = append(r.readings, reading)
	return reading, nil
}

// ListReadings returns matching readings, newest first.
func (r *Repository) ListReadings(_ context.Context, filter domain.ReadingFilter) ([]domain.Reading, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Reading, 0)
	for _, reading := range r.readings {
		if filter.Matches(reading) {
			matched = append(matched, reading)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	start, end := filter.Page.Bounds(len(matched))
	return matched[start:end], len(matched), nil
}

func (r *Repository) ListWorkOrders(_ context.Context, filter domain.WorkOrderFilter) ([]domain.WorkOrder, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.WorkOrder, 0, len(r.workOrders))
	for _, wo := range r.workOrders {
		if filter.Matches(wo) {
			matched = append(matched, wo)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start, end := filter.Page.Bounds(len(matched))
	return matched[start:end], len(matched), nil
}

func (r *Repository) WorkOrderByID(_ context.Context, id string) (domain.WorkOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wo, ok := r.workOrders[id]
	if !ok {
		return domain.WorkOrder{}, domain.ErrNotFound
	}
	return wo, nil
}

func (r *Repository) CreateWorkOrder(_ context.Context, wo domain.WorkOrder) (domain.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.turbines[wo.TurbineID]; !ok {
		return domain.WorkOrder{}, fmt.Errorf("turbine %s: %w", wo.TurbineID, domain.ErrNotFound)
	}
	if wo.ID == "" {
		wo.ID = uuid.NewString()
	}
	now := r.now()
	wo.CreatedAt, wo.UpdatedAt = now, now
	r.workOrders[wo.ID] = wo
	return wo, nil
}

func (r *Repository) UpdateWorkOrder(_ context.Context, wo domain.WorkOrder) (domain.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.workOrders[wo.ID]
	if !ok {
		return domain.WorkOrder{}, domain.ErrNotFound
	}
	wo.TurbineID = existing.TurbineID
	wo.CreatedAt = existing.CreatedAt
	wo.UpdatedAt = r.now()
	r.workOrders[wo.ID] = wo
	return wo, nil
}

func (r *Repository) DeleteWorkOrder(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workOrders[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.workOrders, id)
	delete(r.comments, id)
	return nil
}

func (r *Repository) ListComments(_ context.Context, workOrderID string) ([]domain.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.workOrders[workOrderID]; !ok {
		return nil, domain.ErrNotFound
	}
	return append([]domain.Comment(nil), r.comments[workOrderID]...), nil
}

func (r *Repository) CreateComment(_ context.Context, c domain.Comment) (domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workOrders[c.WorkOrderID]; !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = r.now()
	r.comments[c.WorkOrderID] = append(r.comments[c.WorkOrderID], c)
	return c, nil
}

var _ domain.Repository = (*Repository)(nil)
