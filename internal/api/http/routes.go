package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
)

// handler contains the HTTP handlers and shared dependencies for the REST API.
type handler struct {
	service domain.FleetService
	streams StreamManager
	weather WeatherController
	logger  *infra.Logger
	opts    Options
}

func registerRoutes(router chi.Router, h *handler) {
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		h.logger.Println(r.Context(), "health check OK")
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/turbines", func(r chi.Router) {
			r.Get("/", h.handleListTurbines)
			r.Post("/", h.handleCreateTurbine)
			r.Get("/{id}", h.handleGetTurbine)
			r.Put("/{id}", h.handleUpdateTurbine)
			r.Delete("/{id}", h.handleDeleteTurbine)
			r.Get("/{id}/power-outputs", h.handleListTurbineReadings)
		})

		r.Route("/power-outputs", func(r chi.Router) {
			r.Get("/", h.handleListReadings)
			r.Post("/", h.handleCreateReadings)
			r.Post("/batch", h.handleIngestBatch)
		})

		r.Route("/work-orders", func(r chi.Router) {
			r.Get("/", h.handleListWorkOrders)
			r.Post("/", h.handleCreateWorkOrder)
			r.Get("/{id}", h.handleGetWorkOrder)
			r.Patch("/{id}", h.handleUpdateWorkOrder)
			r.Delete("/{id}", h.handleDeleteWorkOrder)
			r.Get("/{id}/comments", h.handleListComments)
			r.Post("/{id}/comments", h.handleAddComment)
		})

		r.Route("/stream", func(r chi.Router) {
			r.Get("/power-output", h.handleStreamSSE)
			r.Get("/ws", h.handleStreamWebSocket)
			r.Get("/connections", h.handleListConnections)
			r.Delete("/connections/{id}", h.handleCloseConnection)
		})

		r.Route("/simulation/weather", func(r chi.Router) {
			r.Get("/", h.handleGetWeather)
			r.Post("/", h.handleTriggerWeather)
			r.Delete("/", h.handleClearWeather)
		})
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

type pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type listResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination pagination `json:"pagination"`
}

func newListResponse[T any](data []T, page domain.Page, total int) listResponse[T] {
	page = page.Normalize()
	if data == nil {
		data = []T{}
	}
	return listResponse[T]{
		Data: data,
		Pagination: pagination{
			Page:       page.Number,
			PageSize:   page.Size,
			Total:      total,
			TotalPages: page.TotalPages(total),
		},
	}
}

func (h *handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, "resource already exists")
	default:
		h.logger.Errorf(r.Context(), "request %s %s failed: %v", r.Method, r.URL.Path, err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message, Code: status})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a single JSON document from the request body.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return domain.NewValidationError("body", "request body is required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}
