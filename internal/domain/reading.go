package domain

import "time"

// OutlierKind names the simulated sensor fault behind an outlier reading.
type OutlierKind string

const (
	OutlierNegativeReading OutlierKind = "negative_reading"
	OutlierZeroReading     OutlierKind = "zero_reading"
	OutlierExtremelyHigh   OutlierKind = "extremely_high"
	OutlierMinorNegative   OutlierKind = "minor_negative"
	OutlierModerateSpike   OutlierKind = "moderate_spike"
)

// OutlierKinds lists every fault shape in a stable order.
var OutlierKinds = []OutlierKind{
	OutlierNegativeReading,
	OutlierZeroReading,
	OutlierExtremelyHigh,
	OutlierMinorNegative,
	OutlierModerateSpike,
}

// Valid reports whether k is one of the known fault shapes.
func (k OutlierKind) Valid() bool {
	for _, known := range OutlierKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Reading is one power-output data point. It is immutable once created.
type Reading struct {
	ID          string
	TurbineID   string
	PowerKW     float64
	Timestamp   time.Time
	IsOutlier   bool
	OutlierKind OutlierKind
	CreatedAt   time.Time
}

// OutlierMode controls how outliers are treated in reading listings.
type OutlierMode string

const (
	OutliersInclude OutlierMode = "include"
	OutliersExclude OutlierMode = "exclude"
	OutliersOnly    OutlierMode = "only"
)

// ReadingFilter narrows reading listings. Zero times are unbounded.
type ReadingFilter struct {
	TurbineID string
	From      time.Time
	To        time.Time
	Outliers  OutlierMode
	Page      Page
}

// Matches reports whether r satisfies the filter, ignoring pagination.
func (f ReadingFilter) Matches(r Reading) bool {
	if f.TurbineID != "" && r.TurbineID != f.TurbineID {
		return false
	}
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Timestamp.After(f.To) {
		return false
	}
	switch f.Outliers {
	case OutliersExclude:
		return !r.IsOutlier
	case OutliersOnly:
		return r.IsOutlier
	}
	return true
}
