// Package metrics provides the miner's Prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector holds every metric the miner exposes.
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Backend 指标
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec
	backendTokensUsed      *prometheus.CounterVec

	// Handshake 指标
	handshakeTotal *prometheus.CounterVec

	// Pipeline 指标
	pipelineActive  prometheus.Gauge
	pipelinePending prometheus.Gauge

	// Readiness 指标
	backendReady prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates the metrics collector.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of backend chat-completion requests",
		},
		[]string{"backend", "status"},
	)

	c.backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend chat-completion duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"backend"},
	)

	c.backendTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"backend", "type"}, // type: prompt, completion
	)

	c.handshakeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_total",
			Help:      "Total number of MLTS key-exchange attempts",
		},
		[]string{"status"},
	)

	c.pipelineActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_active",
			Help:      "Number of challenges currently being serviced",
		},
	)

	c.pipelinePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_pending",
			Help:      "Number of challenges waiting in the FIFO queue",
		},
	)

	c.backendReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_ready",
			Help:      "1 once the readiness gate has opened, 0 until then",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🤖 Backend 指标记录
// =============================================================================

// RecordBackendRequest records one backend chat-completion call.
func (c *Collector) RecordBackendRequest(backend, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.backendRequestsTotal.WithLabelValues(backend, status).Inc()
	c.backendRequestDuration.WithLabelValues(backend).Observe(duration.Seconds())
	c.backendTokensUsed.WithLabelValues(backend, "prompt").Add(float64(promptTokens))
	c.backendTokensUsed.WithLabelValues(backend, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 🤝 Handshake 指标记录
// =============================================================================

// RecordHandshake records the outcome of a key-exchange attempt.
func (c *Collector) RecordHandshake(status string) {
	c.handshakeTotal.WithLabelValues(status).Inc()
}

// =============================================================================
// 🚦 Pipeline / Readiness 指标记录
// =============================================================================

// SetPipelineDepth sets the current active/pending gauges.
func (c *Collector) SetPipelineDepth(active, pending int) {
	c.pipelineActive.Set(float64(active))
	c.pipelinePending.Set(float64(pending))
}

// SetBackendReady sets the readiness gauge.
func (c *Collector) SetBackendReady(ready bool) {
	if ready {
		c.backendReady.Set(1)
		return
	}
	c.backendReady.Set(0)
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
