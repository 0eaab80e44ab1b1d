// Package fleet validates fleet requests and maps them onto the repository.
package fleet

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
)

// Logger defines the logging behaviour required by the service.
type Logger interface {
	Printf(ctx context.Context, format string, v ...any)
}

// Service orchestrates access to turbines, readings and work orders.
type Service struct {
	repo   domain.Repository
	logger Logger
}

// New creates a new Service instance.
func New(repo domain.Repository, logger Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) ListTurbines(ctx context.Context, filter domain.TurbineFilter) ([]domain.Turbine, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page = filter.Page.Normalize()
	return s.repo.ListTurbines(ctx, filter)
}

func (s *Service) GetTurbine(ctx context.Context, id string) (domain.Turbine, error) {
	return s.repo.TurbineByID(ctx, id)
}

func (s *Service) CreateTurbine(ctx context.Context, turbine domain.Turbine) (domain.Turbine, error) {
	turbine.ID = strings.TrimSpace(turbine.ID)
	if err := validateTurbine(&turbine); err != nil {
		return domain.Turbine{}, err
	}
	return s.repo.CreateTurbine(ctx, turbine)
}

// UpdateTurbine applies patch to the stored turbine. An empty patch returns the
// turbine unchanged without a write.
func (s *Service) UpdateTurbine(ctx context.Context, id string, patch domain.TurbinePatch) (domain.Turbine, error) {
	turbine, err := s.repo.TurbineByID(ctx, id)
	if err != nil {
		return domain.Turbine{}, err
	}
	if !patch.Apply(&turbine) {
		return turbine, nil
	}
	if err := validateTurbine(&turbine); err != nil {
		return domain.Turbine{}, err
	}
	return s.repo.UpdateTurbine(ctx, turbine)
}

func (s *Service) DeleteTurbine(ctx context.Context, id string) error {
	return s.repo.DeleteTurbine(ctx, id)
}

func validateTurbine(t *domain.Turbine) error {
	t.Name = strings.TrimSpace(t.Name)
	t.Location = strings.TrimSpace(t.Location)
	t.Model = strings.TrimSpace(t.Model)
	if t.Name == "" {
		return domain.NewValidationError("name", "is required")
	}
	if !finite(t.RatedCapacityKW) || t.RatedCapacityKW <= 0 {
		return domain.NewValidationError("ratedCapacityKW", "must be a positive number")
	}
	return nil
}

func (s *Service) ListReadings(ctx context.Context, filter domain.ReadingFilter) ([]domain.Reading, int, error) {
	switch filter.Outliers {
	case "":
		filter.Outliers = domain.OutliersInclude
	case domain.OutliersInclude, domain.OutliersExclude, domain.OutliersOnly:
	default:
		return nil, 0, domain.NewValidationError("outliers", "must be one of include, exclude, only")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, 0, domain.NewValidationError("from", "must not be after to")
	}
	filter.Page = filter.Page.Normalize()
	return s.repo.ListReadings(ctx, filter)
}

// RecordReadings validates and stores readings as one unit. Any invalid entry
// rejects the whole request.
func (s *Service) RecordReadings(ctx context.Context, readings []domain.Reading) ([]domain.Reading, error) {
	if len(readings) == 0 {
		return nil, domain.NewValidationError("readings", "at least one reading is required")
	}
	for i := range readings {
		if err := validateReading(&readings[i]); err != nil {
			return nil, err
		}
	}
	if len(readings) == 1 {
		saved, err := s.repo.CreateReading(ctx, readings[0])
		if err != nil {
			return nil, err
		}
		return []domain.Reading{saved}, nil
	}
	return s.repo.CreateReadings(ctx, readings)
}

func validateReading(r *domain.Reading) error {
	r.TurbineID = strings.TrimSpace(r.TurbineID)
	if r.TurbineID == "" {
		return domain.NewValidationError("windTurbineId", "is required")
	}
	if !finite(r.PowerKW) {
		return domain.NewValidationError("powerKW", "must be a finite number")
	}
	if r.OutlierKind != "" {
		if !r.OutlierKind.Valid() {
			return domain.NewValidationError("outlierType", "unknown outlier type %q", r.OutlierKind)
		}
		r.IsOutlier = true
	}
	return nil
}

// IngestBatch stores the well-formed readings of a batch and skips the rest.
// Items naming turbines that do not exist are skipped too.
func (s *Service) IngestBatch(ctx context.Context, items []domain.IngestReading) (domain.IngestResult, error) {
	result := domain.IngestResult{TotalReceived: len(items)}

	candidates := make([]domain.Reading, 0, len(items))
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		reading, ok := ingestCandidate(item)
		if !ok {
			continue
		}
		candidates = append(candidates, reading)
		if _, dup := seen[reading.TurbineID]; !dup {
			seen[reading.TurbineID] = struct{}{}
			ids = append(ids, reading.TurbineID)
		}
	}

	saved, err := s.storeKnown(ctx, candidates, ids)
	if err != nil {
		return domain.IngestResult{}, err
	}
	result.SavedCount = saved

	skipped := result.TotalReceived - result.SavedCount
	infra.ObserveIngest(result.SavedCount, skipped)
	if skipped > 0 && s.logger != nil {
		s.logger.Printf(ctx, "batch ingest: saved %d of %d readings, skipped %d", result.SavedCount, result.TotalReceived, skipped)
	}
	return result, nil
}

// storeKnown persists the candidates whose turbine exists. A turbine removed
// between the lookup and the insert fails the whole insert with ErrNotFound, so
// the lookup is repeated once and the insert retried with the survivors.
func (s *Service) storeKnown(ctx context.Context, candidates []domain.Reading, ids []string) (int, error) {
	for attempt := 0; ; attempt++ {
		if len(candidates) == 0 {
			return 0, nil
		}
		known, err := s.repo.TurbinesByIDs(ctx, ids, false)
		if err != nil {
			return 0, err
		}
		exists := make(map[string]struct{}, len(known))
		for _, t := range known {
			exists[t.ID] = struct{}{}
		}

		accepted := make([]domain.Reading, 0, len(candidates))
		for _, r := range candidates {
			if _, ok := exists[r.TurbineID]; ok {
				accepted = append(accepted, r)
			}
		}
		if len(accepted) == 0 {
			return 0, nil
		}

		saved, err := s.repo.CreateReadings(ctx, accepted)
		if errors.Is(err, domain.ErrNotFound) && attempt == 0 {
			candidates = accepted
			continue
		}
		if err != nil {
			return 0, err
		}
		return len(saved), nil
	}
}

func ingestCandidate(item domain.IngestReading) (domain.Reading, bool) {
	id := strings.TrimSpace(item.TurbineID)
	if item.Malformed || id == "" || item.PowerKW == nil || !finite(*item.PowerKW) {
		return domain.Reading{}, false
	}
	if item.OutlierKind != "" && !item.OutlierKind.Valid() {
		return domain.Reading{}, false
	}

	reading := domain.Reading{
		TurbineID:   id,
		PowerKW:     *item.PowerKW,
		IsOutlier:   item.IsOutlier || item.OutlierKind != "",
		OutlierKind: item.OutlierKind,
	}
	if item.Timestamp != nil {
		reading.Timestamp = item.Timestamp.UTC()
	}
	return reading, true
}

func (s *Service) ListWorkOrders(ctx context.Context, filter domain.WorkOrderFilter) ([]domain.WorkOrder, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, domain.NewValidationError("status", "unknown status %q", filter.Status)
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, 0, domain.NewValidationError("priority", "unknown priority %q", filter.Priority)
	}
	filter.Page = filter.Page.Normalize()
	return s.repo.ListWorkOrders(ctx, filter)
}

func (s *Service) GetWorkOrder(ctx context.Context, id string) (domain.WorkOrder, error) {
	return s.repo.WorkOrderByID(ctx, id)
}

func (s *Service) CreateWorkOrder(ctx context.Context, order domain.WorkOrder) (domain.WorkOrder, error) {
	order.TurbineID = strings.TrimSpace(order.TurbineID)
	if order.TurbineID == "" {
		return domain.WorkOrder{}, domain.NewValidationError("windTurbineId", "is required")
	}
	if order.Status == "" {
		order.Status = domain.StatusOpen
	}
	if order.Priority == "" {
		order.Priority = domain.PriorityMedium
	}
	if err := validateWorkOrder(&order); err != nil {
		return domain.WorkOrder{}, err
	}
	if _, err := s.repo.TurbineByID(ctx, order.TurbineID); err != nil {
		return domain.WorkOrder{}, err
	}
	return s.repo.CreateWorkOrder(ctx, order)
}

func (s *Service) UpdateWorkOrder(ctx context.Context, id string, patch domain.WorkOrderPatch) (domain.WorkOrder, error) {
	order, err := s.repo.WorkOrderByID(ctx, id)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	patch.Apply(&order)
	if err := validateWorkOrder(&order); err != nil {
		return domain.WorkOrder{}, err
	}
	return s.repo.UpdateWorkOrder(ctx, order)
}

func (s *Service) DeleteWorkOrder(ctx context.Context, id string) error {
	return s.repo.DeleteWorkOrder(ctx, id)
}

func validateWorkOrder(w *domain.WorkOrder) error {
	w.Title = strings.TrimSpace(w.Title)
	w.AssignedTo = strings.TrimSpace(w.AssignedTo)
	if w.Title == "" {
		return domain.NewValidationError("title", "is required")
	}
	if !w.Status.Valid() {
		return domain.NewValidationError("status", "unknown status %q", w.Status)
	}
	if !w.Priority.Valid() {
		return domain.NewValidationError("priority", "unknown priority %q", w.Priority)
	}
	return nil
}

func (s *Service) ListComments(ctx context.Context, workOrderID string) ([]domain.Comment, error) {
	return s.repo.ListComments(ctx, workOrderID)
}

func (s *Service) AddComment(ctx context.Context, comment domain.Comment) (domain.Comment, error) {
	comment.Author = strings.TrimSpace(comment.Author)
	comment.Body = strings.TrimSpace(comment.Body)
	if comment.Body == "" {
		return domain.Comment{}, domain.NewValidationError("body", "is required")
	}
	if comment.Author == "" {
		comment.Author = "anonymous"
	}
	if _, err := s.repo.WorkOrderByID(ctx, comment.WorkOrderID); err != nil {
		return domain.Comment{}, err
	}
	return s.repo.CreateComment(ctx, comment)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

var _ domain.FleetService = (*Service)(nil)
