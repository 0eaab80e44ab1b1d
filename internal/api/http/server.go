// Package httpapi exposes the fleet REST API and the HTTP push transports.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/c3-joao/windturbine-backend/internal/application/stream"
	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
)

const headerRequestID = "X-Request-ID"

// StreamManager is the subscription surface used by the push transports.
type StreamManager interface {
	Subscribe(ctx context.Context, req stream.Request, sink stream.Sink) (*stream.Subscription, error)
	Unsubscribe(id string) error
	Active() []stream.Info
}

// WeatherController inspects and overrides the shared weather model.
type WeatherController interface {
	Current() (domain.WeatherEvent, bool)
	Trigger(kind domain.EventKind) (domain.WeatherEvent, error)
	Clear()
}

// Options tunes the push transports.
type Options struct {
	// DefaultIntervalSeconds applies when a subscription omits interval.
	DefaultIntervalSeconds int
	// KeepAlive is the idle period after which SSE and WebSocket send a heartbeat.
	KeepAlive time.Duration
}

// Server exposes the HTTP transport for the fleet application.
type Server struct {
	handler http.Handler
}

// NewServer constructs a chi based HTTP server that forwards requests to the application services.
func NewServer(service domain.FleetService, streams StreamManager, weather WeatherController, logger *infra.Logger, opts Options) *Server {
	if opts.DefaultIntervalSeconds <= 0 {
		opts.DefaultIntervalSeconds = 5
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}

	router := chi.NewRouter()
	router.Use(
		requestIDMiddleware,
		infra.HTTPMiddleware(func(r *http.Request) string {
			if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
				if pattern := routeCtx.RoutePattern(); pattern != "" {
					return pattern
				}
			}
			return r.URL.Path
		}),
		middleware.Recoverer,
	)

	h := &handler{
		service: service,
		streams: streams,
		weather: weather,
		logger:  logger,
		opts:    opts,
	}
	registerRoutes(router, h)

	return &Server{handler: router}
}

// Router returns the configured HTTP handler for reuse in tests or external HTTP servers.
func (s *Server) Router() http.Handler {
	return s.handler
}

// ServeHTTP allows Server to satisfy the http.Handler interface directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// requestIDMiddleware propagates X-Request-ID as the log correlation id.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(infra.WithCorrelationID(r.Context(), id)))
	})
}
