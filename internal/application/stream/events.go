package stream

import (
	"context"
	"time"
)

const (
	EventConnected   = "connected"
	EventPowerOutput = "power-output"
	EventError       = "error"
)

// Event is one message pushed to a subscriber. Framing is up to the Sink.
type Event struct {
	Name string
	Data any
}

type ConnectedPayload struct {
	ConnectionID    string   `json:"connectionId"`
	IntervalSeconds int      `json:"intervalSeconds"`
	TurbineIDs      []string `json:"turbineIds"`
	TurbineCount    int      `json:"turbineCount"`
}

type PowerOutputPayload struct {
	Timestamp    time.Time      `json:"timestamp"`
	TurbineCount int            `json:"turbineCount"`
	Readings     []PowerReading `json:"readings"`
}

type PowerReading struct {
	TurbineID       string    `json:"turbineId"`
	TurbineName     string    `json:"turbineName"`
	PowerKW         float64   `json:"powerKW"`
	RatedCapacityKW float64   `json:"ratedCapacityKW"`
	Efficiency      float64   `json:"efficiency"`
	Timestamp       time.Time `json:"timestamp"`
	IsOutlier       bool      `json:"isOutlier,omitempty"`
	OutlierType     string    `json:"outlierType,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Sink delivers events to one subscriber.
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Send(ctx context.Context, event Event) error {
	return f(ctx, event)
}
