package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

type workOrderResponse struct {
	ID            string     `json:"id"`
	WindTurbineID string     `json:"windTurbineId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	AssignedTo    string     `json:"assignedTo"`
	DueDate       *time.Time `json:"dueDate"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type createWorkOrderRequest struct {
	WindTurbineID string     `json:"windTurbineId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	AssignedTo    string     `json:"assignedTo"`
	DueDate       *time.Time `json:"dueDate"`
}

type updateWorkOrderRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	AssignedTo  *string    `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate"`
}

type commentResponse struct {
	ID          string    `json:"id"`
	WorkOrderID string    `json:"workOrderId"`
	Author      string    `json:"author"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

type createCommentRequest struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

func toWorkOrderResponse(wo domain.WorkOrder) workOrderResponse {
	resp := workOrderResponse{
		ID:            wo.ID,
		WindTurbineID: wo.TurbineID,
		Title:         wo.Title,
		Description:   wo.Description,
		Status:        string(wo.Status),
		Priority:      string(wo.Priority),
		AssignedTo:    wo.AssignedTo,
		CreatedAt:     wo.CreatedAt.UTC(),
		UpdatedAt:     wo.UpdatedAt.UTC(),
	}
	if wo.DueDate != nil {
		due := wo.DueDate.UTC()
		resp.DueDate = &due
	}
	return resp
}

func toCommentResponse(c domain.Comment) commentResponse {
	return commentResponse{
		ID:          c.ID,
		WorkOrderID: c.WorkOrderID,
		Author:      c.Author,
		Body:        c.Body,
		CreatedAt:   c.CreatedAt.UTC(),
	}
}

func (h *handler) handleListWorkOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := queryPagination(q)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	orders, total, err := h.service.ListWorkOrders(r.Context(), domain.WorkOrderFilter{
		TurbineID: queryString(q, queryTurbineID),
		Status:    domain.WorkOrderStatus(queryString(q, queryStatus)),
		Priority:  domain.WorkOrderPriority(queryString(q, queryPriority)),
		Page:      page,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	data := make([]workOrderResponse, 0, len(orders))
	for _, wo := range orders {
		data = append(data, toWorkOrderResponse(wo))
	}
	h.writeJSON(w, http.StatusOK, newListResponse(data, page, total))
}

func (h *handler) handleGetWorkOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetWorkOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toWorkOrderResponse(order))
}

func (h *handler) handleCreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req createWorkOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	created, err := h.service.CreateWorkOrder(r.Context(), domain.WorkOrder{
		TurbineID:   req.WindTurbineID,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.WorkOrderStatus(req.Status),
		Priority:    domain.WorkOrderPriority(req.Priority),
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toWorkOrderResponse(created))
}

func (h *handler) handleUpdateWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req updateWorkOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	patch := domain.WorkOrderPatch{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		status := domain.WorkOrderStatus(*req.Status)
		patch.Status = &status
	}
	if req.Priority != nil {
		priority := domain.WorkOrderPriority(*req.Priority)
		patch.Priority = &priority
	}

	updated, err := h.service.UpdateWorkOrder(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toWorkOrderResponse(updated))
}

func (h *handler) handleDeleteWorkOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteWorkOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	data := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		data = append(data, toCommentResponse(c))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (h *handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	created, err := h.service.AddComment(r.Context(), domain.Comment{
		WorkOrderID: chi.URLParam(r, "id"),
		Author:      req.Author,
		Body:        req.Body,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toCommentResponse(created))
}
