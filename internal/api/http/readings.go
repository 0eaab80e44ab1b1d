package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

type readingResponse struct {
	ID            string    `json:"id"`
	WindTurbineID string    `json:"windTurbineId"`
	PowerKW       float64   `json:"powerKW"`
	Timestamp     time.Time `json:"timestamp"`
	IsOutlier     bool      `json:"isOutlier"`
	OutlierType   *string   `json:"outlierType"`
	CreatedAt     time.Time `json:"createdAt"`
}

type readingRequest struct {
	WindTurbineID string     `json:"windTurbineId"`
	PowerKW       *float64   `json:"powerKW"`
	Timestamp     *time.Time `json:"timestamp"`
	IsOutlier     bool       `json:"isOutlier"`
	OutlierType   string     `json:"outlierType"`
}

// readingsBody is either a single reading object or an array of them.
type readingsBody struct {
	items []readingRequest
	many  bool
}

func (b *readingsBody) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		b.many = true
		return json.Unmarshal(data, &b.items)
	}

	var one readingRequest
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	b.items = []readingRequest{one}
	return nil
}

func toReadingResponse(rd domain.Reading) readingResponse {
	resp := readingResponse{
		ID:            rd.ID,
		WindTurbineID: rd.TurbineID,
		PowerKW:       rd.PowerKW,
		Timestamp:     rd.Timestamp.UTC(),
		IsOutlier:     rd.IsOutlier,
		CreatedAt:     rd.CreatedAt.UTC(),
	}
	if rd.OutlierKind != "" {
		kind := string(rd.OutlierKind)
		resp.OutlierType = &kind
	}
	return resp
}

func (h *handler) handleListReadings(w http.ResponseWriter, r *http.Request) {
	h.listReadings(w, r, queryString(r.URL.Query(), queryTurbineID))
}

func (h *handler) handleListTurbineReadings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.service.GetTurbine(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.listReadings(w, r, id)
}

func (h *handler) listReadings(w http.ResponseWriter, r *http.Request, turbineID string) {
	q := r.URL.Query()
	filter := domain.ReadingFilter{
		TurbineID: turbineID,
		Outliers:  domain.OutlierMode(queryString(q, queryOutliers)),
	}

	var err error
	if filter.From, err = queryTime(q, queryFrom); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if filter.To, err = queryTime(q, queryTo); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if filter.Page, err = queryPagination(q); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	readings, total, err := h.service.ListReadings(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	data := make([]readingResponse, 0, len(readings))
	for _, rd := range readings {
		data = append(data, toReadingResponse(rd))
	}
	h.writeJSON(w, http.StatusOK, newListResponse(data, filter.Page, total))
}

func (h *handler) handleCreateReadings(w http.ResponseWriter, r *http.Request) {
	var body readingsBody
	if err := decodeJSON(r, &body); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	readings := make([]domain.Reading, 0, len(body.items))
	for _, item := range body.items {
		if item.PowerKW == nil {
			h.writeError(w, http.StatusBadRequest, "powerKW: is required")
			return
		}
		rd := domain.Reading{
			TurbineID:   item.WindTurbineID,
			PowerKW:     *item.PowerKW,
			IsOutlier:   item.IsOutlier,
			OutlierKind: domain.OutlierKind(item.OutlierType),
		}
		if item.Timestamp != nil {
			rd.Timestamp = item.Timestamp.UTC()
		}
		readings = append(readings, rd)
	}

	saved, err := h.service.RecordReadings(r.Context(), readings)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if !body.many {
		h.writeJSON(w, http.StatusCreated, toReadingResponse(saved[0]))
		return
	}
	data := make([]readingResponse, 0, len(saved))
	for _, rd := range saved {
		data = append(data, toReadingResponse(rd))
	}
	h.writeJSON(w, http.StatusCreated, data)
}

type batchRequest struct {
	Readings *[]json.RawMessage `json:"readings"`
}

type batchResponse struct {
	SavedCount    int `json:"savedCount"`
	TotalReceived int `json:"totalReceived"`
}

// batchItem keeps every field raw so one bad value only spoils its own item.
type batchItem struct {
	WindTurbineID json.RawMessage `json:"windTurbineId"`
	PowerKW       json.RawMessage `json:"powerKW"`
	Timestamp     json.RawMessage `json:"timestamp"`
	IsOutlier     json.RawMessage `json:"isOutlier"`
	OutlierType   json.RawMessage `json:"outlierType"`
}

func (h *handler) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if req.Readings == nil {
		h.writeError(w, http.StatusBadRequest, "readings: is required")
		return
	}

	items := make([]domain.IngestReading, 0, len(*req.Readings))
	for _, raw := range *req.Readings {
		items = append(items, parseBatchItem(raw))
	}

	result, err := h.service.IngestBatch(r.Context(), items)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, batchResponse{SavedCount: result.SavedCount, TotalReceived: result.TotalReceived})
}

func parseBatchItem(raw json.RawMessage) domain.IngestReading {
	var item batchItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.IngestReading{Malformed: true}
	}

	var out domain.IngestReading
	if len(item.WindTurbineID) > 0 && json.Unmarshal(item.WindTurbineID, &out.TurbineID) != nil {
		out.Malformed = true
	}

	var power *float64
	if len(item.PowerKW) > 0 && json.Unmarshal(item.PowerKW, &power) == nil {
		out.PowerKW = power
	}

	if isPresent(item.Timestamp) {
		var ts time.Time
		if json.Unmarshal(item.Timestamp, &ts) != nil {
			out.Malformed = true
		} else {
			out.Timestamp = &ts
		}
	}

	if isPresent(item.IsOutlier) {
		_ = json.Unmarshal(item.IsOutlier, &out.IsOutlier)
	}
	if isPresent(item.OutlierType) {
		var kind string
		if json.Unmarshal(item.OutlierType, &kind) != nil {
			out.Malformed = true
		}
		out.OutlierKind = domain.OutlierKind(kind)
	}
	return out
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
