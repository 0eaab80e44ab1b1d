package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/c3-joao/windturbine-backend/internal/application/stream"
	"github.com/c3-joao/windturbine-backend/internal/domain"
)

type connectionsResponse struct {
	Count       int           `json:"count"`
	Connections []stream.Info `json:"connections"`
}

type weatherEventResponse struct {
	Kind            string  `json:"kind"`
	OutputFactor    float64 `json:"outputFactor"`
	RemainingCycles int     `json:"remainingCycles"`
}

type weatherResponse struct {
	Active bool                  `json:"active"`
	Event  *weatherEventResponse `json:"event"`
}

type triggerWeatherRequest struct {
	Kind string `json:"kind"`
}

func toWeatherEventResponse(ev domain.WeatherEvent) *weatherEventResponse {
	return &weatherEventResponse{
		Kind:            string(ev.Kind),
		OutputFactor:    ev.OutputFactor,
		RemainingCycles: ev.RemainingCycles,
	}
}

func (h *handler) handleListConnections(w http.ResponseWriter, _ *http.Request) {
	active := h.streams.Active()
	h.writeJSON(w, http.StatusOK, connectionsResponse{Count: len(active), Connections: active})
}

func (h *handler) handleCloseConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.streams.Unsubscribe(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "connection not found")
			return
		}
		h.respondServiceError(w, r, err)
		return
	}
	h.logger.Printf(r.Context(), "stream: connection %s closed by request", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleGetWeather(w http.ResponseWriter, _ *http.Request) {
	resp := weatherResponse{}
	if ev, ok := h.weather.Current(); ok {
		resp.Active = true
		resp.Event = toWeatherEventResponse(ev)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleTriggerWeather(w http.ResponseWriter, r *http.Request) {
	var req triggerWeatherRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	ev, err := h.weather.Trigger(domain.EventKind(req.Kind))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.logger.Printf(r.Context(), "weather: %s triggered by request", ev.Kind)
	h.writeJSON(w, http.StatusCreated, weatherResponse{Active: true, Event: toWeatherEventResponse(ev)})
}

func (h *handler) handleClearWeather(w http.ResponseWriter, _ *http.Request) {
	h.weather.Clear()
	w.WriteHeader(http.StatusNoContent)
}
