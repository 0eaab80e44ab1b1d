package domain

// EventKind identifies a weather event.
type EventKind string

const (
	EventStorm             EventKind = "storm"
	EventHighPressure      EventKind = "high_pressure"
	EventMaintenanceWindow EventKind = "maintenance_window"
)

// WeatherEvent is a temporary output multiplier applied to every reading.
type WeatherEvent struct {
	Kind            EventKind
	OutputFactor    float64
	RemainingCycles int
}
