package domain

import "time"

type WorkOrderStatus string

const (
	StatusOpen       WorkOrderStatus = "open"
	StatusInProgress WorkOrderStatus = "in_progress"
	StatusCompleted  WorkOrderStatus = "completed"
	StatusCancelled  WorkOrderStatus = "cancelled"
)

func (s WorkOrderStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type WorkOrderPriority string

const (
	PriorityLow      WorkOrderPriority = "low"
	PriorityMedium   WorkOrderPriority = "medium"
	PriorityHigh     WorkOrderPriority = "high"
	PriorityCritical WorkOrderPriority = "critical"
)

func (p WorkOrderPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// WorkOrder is a maintenance task raised against a turbine.
type WorkOrder struct {
	ID          string
	TurbineID   string
	Title       string
	Description string
	Status      WorkOrderStatus
	Priority    WorkOrderPriority
	AssignedTo  string
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WorkOrderFilter struct {
	TurbineID string
	Status    WorkOrderStatus
	Priority  WorkOrderPriority
	Page      Page
}

func (f WorkOrderFilter) Matches(w WorkOrder) bool {
	if f.TurbineID != "" && w.TurbineID != f.TurbineID {
		return false
	}
	if f.Status != "" && w.Status != f.Status {
		return false
	}
	if f.Priority != "" && w.Priority != f.Priority {
		return false
	}
	return true
}

// WorkOrderPatch carries the mutable work order fields; nil means unchanged.
type WorkOrderPatch struct {
	Title       *string
	Description *string
	Status      *WorkOrderStatus
	Priority    *WorkOrderPriority
	AssignedTo  *string
	DueDate     *time.Time
}

func (p WorkOrderPatch) Apply(w *WorkOrder) {
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.Description != nil {
		w.Description = *p.Description
	}
	if p.Status != nil {
		w.Status = *p.Status
	}
	if p.Priority != nil {
		w.Priority = *p.Priority
	}
	if p.AssignedTo != nil {
		w.AssignedTo = *p.AssignedTo
	}
	if p.DueDate != nil {
		due := *p.DueDate
		w.DueDate = &due
	}
}

// Comment is a note attached to a work order.
type Comment struct {
	ID          string
	WorkOrderID string
	Author      string
	Body        string
	CreatedAt   time.Time
}
