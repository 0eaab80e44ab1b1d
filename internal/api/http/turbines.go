package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

type turbineResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Location        string    `json:"location"`
	Model           string    `json:"model"`
	RatedCapacityKW float64   `json:"ratedCapacityKW"`
	IsActive        bool      `json:"isActive"`
	InstalledAt     time.Time `json:"installedAt"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type createTurbineRequest struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Location        string     `json:"location"`
	Model           string     `json:"model"`
	RatedCapacityKW float64    `json:"ratedCapacityKW"`
	IsActive        *bool      `json:"isActive"`
	InstalledAt     *time.Time `json:"installedAt"`
}

type updateTurbineRequest struct {
	Name            *string  `json:"name"`
	Location        *string  `json:"location"`
	Model           *string  `json:"model"`
	RatedCapacityKW *float64 `json:"ratedCapacityKW"`
	IsActive        *bool    `json:"isActive"`
}

func toTurbineResponse(t domain.Turbine) turbineResponse {
	return turbineResponse{
		ID:              t.ID,
		Name:            t.Name,
		Location:        t.Location,
		Model:           t.Model,
		RatedCapacityKW: t.RatedCapacityKW,
		IsActive:        t.Active,
		InstalledAt:     t.InstalledAt.UTC(),
		CreatedAt:       t.CreatedAt.UTC(),
		UpdatedAt:       t.UpdatedAt.UTC(),
	}
}

func (h *handler) handleListTurbines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	active, err := queryBool(q, queryActive)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	page, err := queryPagination(q)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	turbines, total, err := h.service.ListTurbines(r.Context(), domain.TurbineFilter{
		Active: active,
		Search: queryString(q, querySearch),
		Page:   page,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	data := make([]turbineResponse, 0, len(turbines))
	for _, t := range turbines {
		data = append(data, toTurbineResponse(t))
	}
	h.writeJSON(w, http.StatusOK, newListResponse(data, page, total))
}

func (h *handler) handleGetTurbine(w http.ResponseWriter, r *http.Request) {
	turbine, err := h.service.GetTurbine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTurbineResponse(turbine))
}

func (h *handler) handleCreateTurbine(w http.ResponseWriter, r *http.Request) {
	var req createTurbineRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	turbine := domain.Turbine{
		ID:              req.ID,
		Name:            req.Name,
		Location:        req.Location,
		Model:           req.Model,
		RatedCapacityKW: req.RatedCapacityKW,
		Active:          req.IsActive == nil || *req.IsActive,
	}
	if req.InstalledAt != nil {
		turbine.InstalledAt = req.InstalledAt.UTC()
	}

	created, err := h.service.CreateTurbine(r.Context(), turbine)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toTurbineResponse(created))
}

func (h *handler) handleUpdateTurbine(w http.ResponseWriter, r *http.Request) {
	var req updateTurbineRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	updated, err := h.service.UpdateTurbine(r.Context(), chi.URLParam(r, "id"), domain.TurbinePatch{
		Name:            req.Name,
		Location:        req.Location,
		Model:           req.Model,
		RatedCapacityKW: req.RatedCapacityKW,
		Active:          req.IsActive,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTurbineResponse(updated))
}

func (h *handler) handleDeleteTurbine(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTurbine(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
