package domain

import "time"

// Turbine is a single generating unit of the fleet.
type Turbine struct {
	ID              string
	Name            string
	Location        string
	Model           string
	RatedCapacityKW float64
	Active          bool
	InstalledAt     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TurbineFilter narrows turbine listings.
type TurbineFilter struct {
	Active *bool
	Search string
	Page   Page
}

// TurbinePatch carries the mutable turbine fields; nil means unchanged.
type TurbinePatch struct {
	Name            *string
	Location        *string
	Model           *string
	RatedCapacityKW *float64
	Active          *bool
}

// Apply merges the patch into t and reports whether anything changed.
func (p TurbinePatch) Apply(t *Turbine) bool {
	changed := false
	if p.Name != nil {
		t.Name = *p.Name
		changed = true
	}
	if p.Location != nil {
		t.Location = *p.Location
		changed = true
	}
	if p.Model != nil {
		t.Model = *p.Model
		changed = true
	}
	if p.RatedCapacityKW != nil {
		t.RatedCapacityKW = *p.RatedCapacityKW
		changed = true
	}
	if p.Active != nil {
		t.Active = *p.Active
		changed = true
	}
	return changed
}
