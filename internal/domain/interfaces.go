package domain

import (
	"context"
	"time"
)

// TurbineRepository persists turbines.
type TurbineRepository interface {
	ListTurbines(ctx context.Context, filter TurbineFilter) ([]Turbine, int, error)
	TurbineByID(ctx context.Context, id string) (Turbine, error)
	// TurbinesByIDs resolves ids to turbines, silently omitting unknown ones.
	TurbinesByIDs(ctx context.Context, ids []string, activeOnly bool) ([]Turbine, error)
	CreateTurbine(ctx context.Context, turbine Turbine) (Turbine, error)
	UpdateTurbine(ctx context.Context, turbine Turbine) (Turbine, error)
	DeleteTurbine(ctx context.Context, id string) error
}

// ReadingRepository is the append-only store for power readings.
type ReadingRepository interface {
	CreateReading(ctx context.Context, reading Reading) (Reading, error)
	CreateReadings(ctx context.Context, readings []Reading) ([]Reading, error)
	ListReadings(ctx context.Context, filter ReadingFilter) ([]Reading, int, error)
}

// WorkOrderRepository persists work orders and their comments.
type WorkOrderRepository interface {
	ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]WorkOrder, int, error)
	WorkOrderByID(ctx context.Context, id string) (WorkOrder, error)
	CreateWorkOrder(ctx context.Context, order WorkOrder) (WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, order WorkOrder) (WorkOrder, error)
	DeleteWorkOrder(ctx context.Context, id string) error
	ListComments(ctx context.Context, workOrderID string) ([]Comment, error)
	CreateComment(ctx context.Context, comment Comment) (Comment, error)
}

// Repository aggregates every storage capability required by the service.
type Repository interface {
	TurbineRepository
	ReadingRepository
	WorkOrderRepository
	Close() error
}

// ReadingGenerator produces one simulated reading for a turbine.
type ReadingGenerator interface {
	Generate(turbine Turbine, at time.Time, weatherFactor, outlierChance float64) Reading
}

// WeatherModel is the shared weather narrative applied to generation cycles.
type WeatherModel interface {
	Tick() float64
	Current() (WeatherEvent, bool)
	Trigger(kind EventKind) (WeatherEvent, error)
}

// IngestReading is one entry of a batch ingest request. A nil PowerKW marks a
// missing or non-numeric value.
type IngestReading struct {
	TurbineID   string
	PowerKW     *float64
	Timestamp   *time.Time
	IsOutlier   bool
	OutlierKind OutlierKind
	Malformed   bool
}

// IngestResult summarises a batch ingest.
type IngestResult struct {
	SavedCount    int
	TotalReceived int
}

// FleetService describes the behaviour exposed to transport layers.
type FleetService interface {
	ListTurbines(ctx context.Context, filter TurbineFilter) ([]Turbine, int, error)
	GetTurbine(ctx context.Context, id string) (Turbine, error)
	CreateTurbine(ctx context.Context, turbine Turbine) (Turbine, error)
	UpdateTurbine(ctx context.Context, id string, patch TurbinePatch) (Turbine, error)
	DeleteTurbine(ctx context.Context, id string) error

	ListReadings(ctx context.Context, filter ReadingFilter) ([]Reading, int, error)
	RecordReadings(ctx context.Context, readings []Reading) ([]Reading, error)
	IngestBatch(ctx context.Context, items []IngestReading) (IngestResult, error)

	ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]WorkOrder, int, error)
	GetWorkOrder(ctx context.Context, id string) (WorkOrder, error)
	CreateWorkOrder(ctx context.Context, order WorkOrder) (WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, id string, patch WorkOrderPatch) (WorkOrder, error)
	DeleteWorkOrder(ctx context.Context, id string) error
	ListComments(ctx context.Context, workOrderID string) ([]Comment, error)
	AddComment(ctx context.Context, comment Comment) (Comment, error)
}
