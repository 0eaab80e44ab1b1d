package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/c3-joao/windturbine-backend/internal/application/stream"
	"github.com/c3-joao/windturbine-backend/internal/domain"
)

// streamRequest reads and validates the subscription query parameters.
func (h *handler) streamRequest(r *http.Request) (stream.Request, error) {
	q := r.URL.Query()
	interval, err := queryInt(q, queryInterval, h.opts.DefaultIntervalSeconds)
	if err != nil {
		return stream.Request{}, err
	}
	return stream.NormalizeRequest(stream.Request{
		TurbineIDs:      stream.ParseTurbineIDs(q.Get(queryTurbineIDs)),
		IntervalSeconds: interval,
	})
}

// sseSink frames events as text/event-stream messages.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	onError func(error)
}

func (s *sseSink) Send(_ context.Context, event stream.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Name, err)
	}
	return s.write(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Name, data))
}

func (s *sseSink) keepAlive() error {
	return s.write(": keep-alive\n\n")
}

func (s *sseSink) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprint(s.w, frame); err != nil {
		s.onError(err)
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.onError(err)
		return err
	}
	return nil
}

func (h *handler) handleStreamSSE(w http.ResponseWriter, r *http.Request) {
	req, err := h.streamRequest(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	ctx, cancel := context.WithCancelCause(r.Context())
	defer cancel(nil)

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sink := &sseSink{
		w:  w,
		rc: rc,
		onError: func(err error) {
			cancel(&domain.TransportError{Op: "sse write", Err: err})
		},
	}
	if err := rc.Flush(); err != nil {
		return
	}

	sub, err := h.streams.Subscribe(ctx, req, sink)
	if err != nil {
		h.logger.Errorf(r.Context(), "stream: subscribe failed: %v", err)
		_ = sink.Send(ctx, stream.Event{Name: stream.EventError, Data: stream.ErrorPayload{Message: "failed to start stream"}})
		return
	}

	ticker := time.NewTicker(h.opts.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-sub.Done():
			return
		case <-ticker.C:
			_ = sink.keepAlive()
		}
	}
}
