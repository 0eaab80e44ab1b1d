package infra

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})
	HttpRequestErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "http_request_errors_total",
		Help: "Total number of HTTP request errors",
	})
	RequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "windfarm_http_request_duration_seconds",
		Help:    "Duration of HTTP request processing in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// Generation metrics
	ReadingsGeneratedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "windfarm_readings_generated_total",
		Help: "Readings produced by the generator, by kind",
	}, []string{"kind"})

	// Stream metrics
	StreamActiveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "windfarm_stream_active_subscriptions",
		Help: "Number of live stream subscriptions",
	})
	StreamCycleErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "windfarm_stream_cycle_errors_total",
		Help: "Stream generation cycles that reported an error event",
	}, []string{"reason"})
	StreamCycleDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "windfarm_stream_cycle_duration_seconds",
		Help:    "Duration of a stream generation cycle in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Ingest metrics
	IngestReadingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "windfarm_ingest_readings_total",
		Help: "Batch ingest readings by outcome",
	}, []string{"result"})

	// Simulator metrics
	SimulatorBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "windfarm_simulator_batches_total",
		Help: "Reading batches submitted by the simulator, by outcome",
	}, []string{"result"})

	// Worker pool metrics
	WorkerPoolActiveGoroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "windfarm_worker_pool_active_goroutines",
		Help: "Number of active worker pool goroutines",
	})

	registerOnce      sync.Once
	metricsServerOnce sync.Once
)

func init() {
	InitMetrics()
}

// InitMetrics registers all Prometheus collectors used by the application.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HttpRequestsTotal,
			HttpRequestErrorsTotal,
			RequestDurationSeconds,
			ReadingsGeneratedTotal,
			StreamActiveSubscriptions,
			StreamCycleErrorsTotal,
			StreamCycleDurationSeconds,
			IngestReadingsTotal,
			SimulatorBatchesTotal,
			WorkerPoolActiveGoroutines,
		)
	})
}

// Handler returns an HTTP handler that exposes the registered Prometheus metrics.
func Handler() http.Handler {
	InitMetrics()
	return promhttp.Handler()
}

// StartMetricsServer exposes Prometheus metrics on :<port>/metrics. An empty port disables it.
func StartMetricsServer(port string, logger *Logger) {
	InitMetrics()
	if port == "" {
		return
	}
	metricsServerOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf(context.Background(), "metrics server error: %v", err)
			}
		}()
	})
}

// HTTPMiddleware instruments HTTP handlers with request/latency metrics.
func HTTPMiddleware(pathResolver func(*http.Request) string) func(http.Handler) http.Handler {
	InitMetrics()
	if pathResolver == nil {
		pathResolver = func(r *http.Request) string {
			return r.URL.Path
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			defer func() {
				route := pathResolver(r)
				RequestDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
				HttpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.Status())).Inc()

				if recorder.Status() >= http.StatusBadRequest {
					HttpRequestErrorsTotal.Inc()
				}
			}()

			next.ServeHTTP(recorder, r)
		})
	}
}

// ObserveReading counts a generated reading; an empty kind means a normal reading.
func ObserveReading(kind string) {
	InitMetrics()
	if kind == "" {
		kind = "normal"
	}
	ReadingsGeneratedTotal.WithLabelValues(kind).Inc()
}

func SubscriptionOpened() {
	InitMetrics()
	StreamActiveSubscriptions.Inc()
}

func SubscriptionClosed() {
	InitMetrics()
	StreamActiveSubscriptions.Dec()
}

// ObserveStreamCycle records a finished cycle; reason is empty on success.
func ObserveStreamCycle(duration time.Duration, reason string) {
	InitMetrics()
	if duration < 0 {
		duration = 0
	}
	StreamCycleDurationSeconds.Observe(duration.Seconds())
	if reason != "" {
		StreamCycleErrorsTotal.WithLabelValues(reason).Inc()
	}
}

func ObserveIngest(saved, skipped int) {
	InitMetrics()
	IngestReadingsTotal.WithLabelValues("saved").Add(float64(saved))
	IngestReadingsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

func ObserveSimulatorBatch(result string) {
	InitMetrics()
	SimulatorBatchesTotal.WithLabelValues(result).Inc()
}

// WorkerStarted increments the worker pool active goroutines gauge.
func WorkerStarted() {
	InitMetrics()
	WorkerPoolActiveGoroutines.Inc()
}

// WorkerFinished decrements the worker pool active goroutines gauge.
func WorkerFinished() {
	InitMetrics()
	WorkerPoolActiveGoroutines.Dec()
}

// statusRecorder captures the response status code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Status() int {
	return r.status
}

// Flush keeps streaming responses working behind the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
