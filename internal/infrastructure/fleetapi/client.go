// Package fleetapi is an HTTP client for the fleet REST API used by the
// simulator process.
package fleetapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

const (
	httpClientName = "windfarm-simulator"
	turbinesPath   = "/api/turbines"
	batchPath      = "/api/power-outputs/batch"
	pageSize       = 100
	defaultTimeout = 10 * time.Second
)

var (
	methodGet       = []byte("GET")
	methodPost      = []byte("POST")
	applicationJSON = []byte("application/json")
)

type Config struct {
	// BaseURL of the API, in form "http://localhost:8080".
	BaseURL string
	Timeout time.Duration
}

// Client talks to the turbine listing and batch ingest endpoints.
type Client struct {
	client  fasthttp.Client
	baseURL string
	timeout time.Duration
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		client:  fasthttp.Client{Name: httpClientName},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
	}
}

type turbineDTO struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Location        string    `json:"location"`
	Model           string    `json:"model"`
	RatedCapacityKW float64   `json:"ratedCapacityKW"`
	IsActive        bool      `json:"isActive"`
	InstalledAt     time.Time `json:"installedAt"`
}

type turbinePage struct {
	Data       []turbineDTO `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
}

type batchReading struct {
	WindTurbineID string    `json:"windTurbineId"`
	PowerKW       float64   `json:"powerKW"`
	Timestamp     time.Time `json:"timestamp"`
	IsOutlier     bool      `json:"isOutlier,omitempty"`
	OutlierType   string    `json:"outlierType,omitempty"`
}

type batchRequest struct {
	Readings []batchReading `json:"readings"`
}

type batchResponse struct {
	SavedCount    int `json:"savedCount"`
	TotalReceived int `json:"totalReceived"`
}

// ActiveTurbines pages through the active fleet.
func (c *Client) ActiveTurbines(ctx context.Context) ([]domain.Turbine, error) {
	var turbines []domain.Turbine
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("active", "true")
		query.Set("page", fmt.Sprint(page))
		query.Set("pageSize", fmt.Sprint(pageSize))

		var body turbinePage
		if err := c.do(ctx, methodGet, turbinesPath+"?"+query.Encode(), nil, &body); err != nil {
			return nil, fmt.Errorf("list active turbines: %w", err)
		}

		for _, t := range body.Data {
			turbines = append(turbines, domain.Turbine{
				ID:              t.ID,
				Name:            t.Name,
				Location:        t.Location,
				Model:           t.Model,
				RatedCapacityKW: t.RatedCapacityKW,
				Active:          t.IsActive,
				InstalledAt:     t.InstalledAt,
			})
		}
		if len(body.Data) == 0 || page >= body.Pagination.TotalPages {
			return turbines, nil
		}
	}
}

// SubmitReadings posts readings to the batch ingest endpoint.
func (c *Client) SubmitReadings(ctx context.Context, readings []domain.Reading) (domain.IngestResult, error) {
	req := batchRequest{Readings: make([]batchReading, 0, len(readings))}
	for _, r := range readings {
		req.Readings = append(req.Readings, batchReading{
			WindTurbineID: r.TurbineID,
			PowerKW:       r.PowerKW,
			Timestamp:     r.Timestamp.UTC(),
			IsOutlier:     r.IsOutlier,
			OutlierType:   string(r.OutlierKind),
		})
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("encode batch: %w", err)
	}

	var resp batchResponse
	if err := c.do(ctx, methodPost, batchPath, payload, &resp); err != nil {
		return domain.IngestResult{}, fmt.Errorf("submit batch: %w", err)
	}
	return domain.IngestResult{SavedCount: resp.SavedCount, TotalReceived: resp.TotalReceived}, nil
}

func (c *Client) do(ctx context.Context, method []byte, path string, body []byte, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethodBytes(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.SetContentTypeBytes(applicationJSON)
		req.SetBody(body)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return &domain.TransportError{Op: string(method) + " " + path, Err: err}
	}

	if sc := resp.StatusCode(); sc < 200 || sc >= 300 {
		return fmt.Errorf("unexpected response (status %d): %s", sc, strings.TrimSpace(string(resp.Body())))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
