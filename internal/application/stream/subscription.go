package stream

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

const (
	MinIntervalSeconds = 1
	MaxIntervalSeconds = 300
	maxTurbineIDs      = 500
)

var (
	// ErrUnsubscribed is the cancellation cause of an explicit unsubscribe.
	ErrUnsubscribed = errors.New("stream: unsubscribed")
	// ErrShutdown is the cancellation cause used when the manager closes.
	ErrShutdown = errors.New("stream: manager shut down")
	// ErrClientClosed is the cancellation cause of a clean client-side close.
	ErrClientClosed = errors.New("stream: client closed connection")
)

var turbineIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

// Request carries the parameters of a new subscription.
type Request struct {
	TurbineIDs      []string
	IntervalSeconds int
}

// Subscription is one live listener. It never outlives its context.
type Subscription struct {
	ID              string
	TurbineIDs      []string
	IntervalSeconds int
	StartedAt       time.Time

	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Done is closed once the subscription has stopped and been removed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Info is a read-only snapshot of a subscription.
type Info struct {
	ID              string    `json:"id"`
	TurbineIDs      []string  `json:"turbineIds"`
	IntervalSeconds int       `json:"intervalSeconds"`
	StartedAt       time.Time `json:"startedAt"`
	UptimeSeconds   float64   `json:"uptimeSeconds"`
}

// ParseTurbineIDs splits a comma separated id list.
func ParseTurbineIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// NormalizeRequest trims and de-duplicates ids, keeping first-seen order, and
// checks the interval range.
func NormalizeRequest(req Request) (Request, error) {
	if len(req.TurbineIDs) == 0 {
		return Request{}, domain.NewValidationError("turbineIds", "at least one turbine id is required")
	}
	if len(req.TurbineIDs) > maxTurbineIDs {
		return Request{}, domain.NewValidationError("turbineIds", "at most %d turbine ids are allowed", maxTurbineIDs)
	}

	seen := make(map[string]struct{}, len(req.TurbineIDs))
	ids := make([]string, 0, len(req.TurbineIDs))
	for _, raw := range req.TurbineIDs {
		id := strings.TrimSpace(raw)
		if !turbineIDPattern.MatchString(id) {
			return Request{}, domain.NewValidationError("turbineIds", "malformed turbine id %q", raw)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if req.IntervalSeconds < MinIntervalSeconds || req.IntervalSeconds > MaxIntervalSeconds {
		return Request{}, domain.NewValidationError("interval", "must be between %d and %d seconds", MinIntervalSeconds, MaxIntervalSeconds)
	}

	return Request{TurbineIDs: ids, IntervalSeconds: req.IntervalSeconds}, nil
}

func isGraceful(cause error) bool {
	return errors.Is(cause, context.Canceled) ||
		errors.Is(cause, ErrUnsubscribed) ||
		errors.Is(cause, ErrShutdown) ||
		errors.Is(cause, ErrClientClosed)
}
