package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Service   string `json:"service,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

func TestLoggerPrintfIncludesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "test-service")

	ctx := WithCorrelationID(context.Background(), "trace-123")
	logger.Printf(ctx, "hello %s", "world")

	var entry logEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "hello world", entry.Message)
	assert.Equal(t, "test-service", entry.Service)
	assert.Equal(t, "trace-123", entry.TraceID)
	_, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
	assert.NoError(t, err)
}

func TestLoggerPrintlnOmitsEmptyTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "")

	logger.Println(context.Background(), "message")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	_, hasTrace := entry["trace_id"]
	_, hasService := entry["service"]
	assert.False(t, hasTrace)
	assert.False(t, hasService)
	assert.Equal(t, "message", entry["message"])
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "svc")

	logger.Warnf(context.Background(), "careful")
	logger.Errorf(context.Background(), "broken")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var warn, failure logEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &warn))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &failure))
	assert.Equal(t, "warn", warn.Level)
	assert.Equal(t, "error", failure.Level)
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Printf(context.Background(), "ignored")
	logger.Println(context.Background(), "ignored")
	logger.Warnf(context.Background(), "ignored")
	assert.NoError(t, logger.Sync())
}

func TestWithCorrelationIDHandlesNilContext(t *testing.T) {
	ctx := WithCorrelationID(nil, " id ")
	assert.Equal(t, "id", CorrelationIDFromContext(ctx))
	assert.Equal(t, "", CorrelationIDFromContext(context.Background()))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Log("step 1: clear the environment and load the config")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("STREAM_OUTLIER_CHANCE", "")
	t.Setenv("GENERATOR_TIMEZONE", "")

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "50051", cfg.GRPCPort)
	assert.Equal(t, 2.0, cfg.StreamOutlierChance)
	assert.Equal(t, 5, cfg.StreamDefaultSeconds)
	assert.Equal(t, time.Local, cfg.Location())
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Log("step 1: set environment overrides")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("DB_DSN", "dsn")
	t.Setenv("STREAM_OUTLIER_CHANCE", "7.5")
	t.Setenv("GENERATOR_TIMEZONE", "UTC")

	cfg := LoadConfig()

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, "dsn", cfg.DatabaseDSN)
	assert.Equal(t, 7.5, cfg.StreamOutlierChance)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLogConfigProducesEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "test")

	LogConfig(context.Background(), logger, Config{DatabasePassword: "secret"})

	assert.NotContains(t, buf.String(), "secret")
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &payload))
		assert.Equal(t, "info", payload["level"])
	}
}

func TestHTTPMiddlewareCountsErrors(t *testing.T) {
	t.Log("step 1: wrap a failing handler")
	handler := HTTPMiddleware(func(*http.Request) string { return "/fail" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(HttpRequestErrorsTotal)

	t.Log("step 2: serve a request and check the counters")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(HttpRequestErrorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(HttpRequestsTotal.WithLabelValues(http.MethodGet, "/fail", "418")))
}

func TestObserveHelpers(t *testing.T) {
	before := testutil.ToFloat64(ReadingsGeneratedTotal.WithLabelValues("normal"))
	ObserveReading("")
	assert.Equal(t, before+1, testutil.ToFloat64(ReadingsGeneratedTotal.WithLabelValues("normal")))

	saved := testutil.ToFloat64(IngestReadingsTotal.WithLabelValues("saved"))
	ObserveIngest(3, 1)
	assert.Equal(t, saved+3, testutil.ToFloat64(IngestReadingsTotal.WithLabelValues("saved")))

	gauge := testutil.ToFloat64(StreamActiveSubscriptions)
	SubscriptionOpened()
	SubscriptionClosed()
	assert.Equal(t, gauge, testutil.ToFloat64(StreamActiveSubscriptions))
}
