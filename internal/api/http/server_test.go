package httpapi_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "github.com/c3-joao/windturbine-backend/internal/api/http"
	"github.com/c3-joao/windturbine-backend/internal/application/fleet"
	"github.com/c3-joao/windturbine-backend/internal/application/generator"
	"github.com/c3-joao/windturbine-backend/internal/application/stream"
	"github.com/c3-joao/windturbine-backend/internal/application/weather"
	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
	"github.com/c3-joao/windturbine-backend/internal/infrastructure/repository/memory"
)

type testEnv struct {
	server  *httptest.Server
	repo    *memory.Repository
	manager *stream.Manager
	weather *weather.Model
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := infra.NewLogger(io.Discard, "windfarm-test")
	repo := memory.New()
	service := fleet.New(repo, logger)
	model := weather.NewModel(weather.Config{SpawnProbability: -1}, logger)
	gen := generator.New(generator.Config{Location: time.UTC, Source: generator.SeededSource(3)})
	manager := stream.NewManager(stream.Config{IntervalUnit: 20 * time.Millisecond}, repo, gen, model, logger)

	srv := httpapi.NewServer(service, manager, model, logger, httpapi.Options{
		DefaultIntervalSeconds: 1,
		KeepAlive:              time.Hour,
	})
	server := httptest.NewServer(srv)
	t.Cleanup(func() {
		manager.Close()
		server.Close()
	})

	ctx := context.Background()
	for _, turbine := range []domain.Turbine{
		{ID: "T1", Name: "North", Location: "Ridge", Model: "V90", RatedCapacityKW: 2000, Active: true},
		{ID: "T2", Name: "South", Location: "Valley", Model: "V112", RatedCapacityKW: 1500, Active: true},
		{ID: "T3", Name: "East", Location: "Coast", Model: "V90", RatedCapacityKW: 1000, Active: false},
	} {
		_, err := repo.CreateTurbine(ctx, turbine)
		require.NoError(t, err)
	}

	return &testEnv{server: server, repo: repo, manager: manager, weather: model}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

type listEnvelope[T any] struct {
	Data       []T `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PageSize   int `json:"pageSize"`
		Total      int `json:"total"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/healthz"} {
		resp, body := env.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"status":"ok"}`, string(body))
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "trace-123", resp.Header.Get("X-Request-ID"))
}

func TestTurbineEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Log("step 1: list filters by active flag and search")
	resp, body := env.do(t, http.MethodGet, "/api/turbines?active=yes&search=north", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[listEnvelope[map[string]any]](t, body)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "T1", list.Data[0]["id"])
	assert.Equal(t, 1, list.Pagination.Total)
	assert.Equal(t, 1, list.Pagination.TotalPages)

	t.Log("step 2: page size is capped")
	_, body = env.do(t, http.MethodGet, "/api/turbines?pageSize=1000", "")
	list = decode[listEnvelope[map[string]any]](t, body)
	assert.Equal(t, 100, list.Pagination.PageSize)
	assert.Equal(t, 3, list.Pagination.Total)

	t.Log("step 3: invalid query values are rejected")
	resp, body = env.do(t, http.MethodGet, "/api/turbines?active=maybe", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 400, decode[errorBody](t, body).Code)
	resp, _ = env.do(t, http.MethodGet, "/api/turbines?page=0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	t.Log("step 4: create, update and delete")
	resp, body = env.do(t, http.MethodPost, "/api/turbines", `{"name":"West","location":"Hill","model":"E-82","ratedCapacityKW":2300}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decode[map[string]any](t, body)
	id := created["id"].(string)
	assert.Equal(t, true, created["isActive"])

	resp, _ = env.do(t, http.MethodPost, "/api/turbines", `{"name":"","ratedCapacityKW":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, "/api/turbines/"+id, `{"isActive":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode[map[string]any](t, body)["isActive"])

	resp, _ = env.do(t, http.MethodDelete, "/api/turbines/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/turbines/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 404, decode[errorBody](t, body).Code)
}

func TestPowerOutputEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Log("step 1: a single object yields a single reading")
	resp, body := env.do(t, http.MethodPost, "/api/power-outputs", `{"windTurbineId":"T1","powerKW":750.5,"timestamp":"2024-06-01T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	single := decode[map[string]any](t, body)
	assert.Equal(t, "T1", single["windTurbineId"])
	assert.Nil(t, single["outlierType"])

	t.Log("step 2: an array yields an array")
	resp, body = env.do(t, http.MethodPost, "/api/power-outputs", `[{"windTurbineId":"T1","powerKW":1},{"windTurbineId":"T2","powerKW":0,"outlierType":"zero_reading"}]`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Len(t, decode[[]map[string]any](t, body), 2)

	resp, _ = env.do(t, http.MethodPost, "/api/power-outputs", `{"windTurbineId":"T404","powerKW":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	t.Log("step 3: outlier filter")
	_, body = env.do(t, http.MethodGet, "/api/power-outputs?outliers=only", "")
	outliers := decode[listEnvelope[map[string]any]](t, body)
	require.Len(t, outliers.Data, 1)
	assert.Equal(t, "zero_reading", outliers.Data[0]["outlierType"])

	_, body = env.do(t, http.MethodGet, "/api/turbines/T1/power-outputs", "")
	assert.Equal(t, 2, decode[listEnvelope[map[string]any]](t, body).Pagination.Total)

	resp, _ = env.do(t, http.MethodGet, "/api/power-outputs?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBatchIngest(t *testing.T) {
	env := newTestEnv(t)

	t.Log("step 1: malformed items are skipped, not rejected")
	resp, body := env.do(t, http.MethodPost, "/api/power-outputs/batch",
		`{"readings":[{"windTurbineId":"T1","powerKW":500},{"windTurbineId":"T2"}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"savedCount":1,"totalReceived":2}`, string(body))

	t.Log("step 2: non-numeric power, bad timestamps and non-objects count as received")
	resp, body = env.do(t, http.MethodPost, "/api/power-outputs/batch",
		`{"readings":[{"windTurbineId":"T1","powerKW":"abc"},{"windTurbineId":"T2","powerKW":3,"timestamp":"nope"},42,{"windTurbineId":7,"powerKW":1},{"windTurbineId":"T2","powerKW":4,"timestamp":"2024-06-01T00:00:00Z"}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"savedCount":1,"totalReceived":5}`, string(body))

	t.Log("step 3: a missing body or readings field is a bad request")
	resp, _ = env.do(t, http.MethodPost, "/api/power-outputs/batch", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/power-outputs/batch", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWorkOrderEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/work-orders", `{"windTurbineId":"T1","title":"Gearbox noise","priority":"high"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	order := decode[map[string]any](t, body)
	id := order["id"].(string)
	assert.Equal(t, "open", order["status"])

	resp, body = env.do(t, http.MethodPatch, "/api/work-orders/"+id, `{"status":"completed"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "completed", decode[map[string]any](t, body)["status"])

	resp, _ = env.do(t, http.MethodPatch, "/api/work-orders/"+id, `{"status":"done"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/work-orders/"+id+"/comments", `{"author":"ops","body":"replaced bearing"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	_, body = env.do(t, http.MethodGet, "/api/work-orders/"+id+"/comments", "")
	assert.Len(t, decode[listEnvelope[map[string]any]](t, body).Data, 1)

	_, body = env.do(t, http.MethodGet, "/api/work-orders?status=completed&turbineId=T1", "")
	assert.Equal(t, 1, decode[listEnvelope[map[string]any]](t, body).Pagination.Total)

	resp, _ = env.do(t, http.MethodDelete, "/api/work-orders/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/work-orders/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWeatherEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/simulation/weather", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"active":false,"event":null}`, string(body))

	resp, body = env.do(t, http.MethodPost, "/api/simulation/weather", `{"kind":"storm"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"active":true,"event":{"kind":"storm","outputFactor":0.2,"remainingCycles":5}}`, string(body))

	resp, _ = env.do(t, http.MethodPost, "/api/simulation/weather", `{"kind":"hail"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/simulation/weather", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok := env.weather.Current()
	assert.False(t, ok)
}

type sseEvent struct {
	name string
	data string
}

func readSSEEvent(t *testing.T, reader *bufio.Reader) sseEvent {
	t.Helper()

	var ev sseEvent
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && ev.name != "":
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestServerSentEventsStream(t *testing.T) {
	env := newTestEnv(t)

	t.Log("step 1: invalid subscriptions are rejected before streaming")
	resp, body := env.do(t, http.MethodGet, "/api/stream/power-output?interval=1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, body).Error, "turbineIds")
	resp, _ = env.do(t, http.MethodGet, "/api/stream/power-output?turbineIds=T1&interval=0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	t.Log("step 2: connected then power-output for the active turbines")
	stream, err := http.Get(env.server.URL + "/api/stream/power-output?turbineIds=T1,T2,T3&interval=1")
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	reader := bufio.NewReader(stream.Body)
	connected := readSSEEvent(t, reader)
	assert.Equal(t, "connected", connected.name)
	var hello struct {
		ConnectionID string `json:"connectionId"`
		TurbineCount int    `json:"turbineCount"`
	}
	require.NoError(t, json.Unmarshal([]byte(connected.data), &hello))
	assert.Equal(t, 3, hello.TurbineCount)

	output := readSSEEvent(t, reader)
	assert.Equal(t, "power-output", output.name)
	var payload struct {
		TurbineCount int `json:"turbineCount"`
		Readings     []struct {
			TurbineID  string  `json:"turbineId"`
			Efficiency float64 `json:"efficiency"`
		} `json:"readings"`
	}
	require.NoError(t, json.Unmarshal([]byte(output.data), &payload))
	assert.Equal(t, 2, payload.TurbineCount)

	t.Log("step 3: the connection is listed and can be closed")
	_, body = env.do(t, http.MethodGet, "/api/stream/connections", "")
	var conns struct {
		Count       int `json:"count"`
		Connections []struct {
			ID string `json:"id"`
		} `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(body, &conns))
	require.Equal(t, 1, conns.Count)
	assert.Equal(t, hello.ConnectionID, conns.Connections[0].ID)

	resp, _ = env.do(t, http.MethodDelete, "/api/stream/connections/"+hello.ConnectionID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/stream/connections/"+hello.ConnectionID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	t.Log("step 4: the response ends once unsubscribed")
	_, err = io.Copy(io.Discard, stream.Body)
	assert.NoError(t, err)
	assert.Zero(t, env.manager.Count())
}

func TestWebSocketStream(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/stream/ws?turbineIds=T1&interval=1"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	var frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "connected", frame.Event)

	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "power-output", frame.Event)
	assert.True(t, bytes.Contains(frame.Data, []byte(`"turbineId":"T1"`)))

	t.Log("a clean client close removes the subscription")
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	assert.Eventually(t, func() bool { return env.manager.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsInvalidRequest(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/stream/ws?turbineIds=bad%20id"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
