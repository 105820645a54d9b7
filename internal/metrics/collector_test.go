package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.backendRequestsTotal)
	assert.NotNil(t, collector.backendTokensUsed)
	assert.NotNil(t, collector.handshakeTotal)
	assert.NotNil(t, collector.pipelineActive)
	assert.NotNil(t, collector.backendReady)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordHTTPRequest("GET", "/fiber/challenge", 200, 100*time.Millisecond)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)

	collector.RecordHTTPRequest("GET", "/fiber/challenge", 200, 50*time.Millisecond)
	newCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_RecordBackendRequest(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordBackendRequest("vllm", "success", 500*time.Millisecond, 100, 50)

	count := testutil.CollectAndCount(collector.backendRequestsTotal)
	assert.Greater(t, count, 0)

	tokensCount := testutil.CollectAndCount(collector.backendTokensUsed)
	assert.Greater(t, tokensCount, 0)
}

func TestCollector_RecordHandshake(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordHandshake("established")
	collector.RecordHandshake("rejected")

	count := testutil.CollectAndCount(collector.handshakeTotal)
	assert.Equal(t, 2, count)
}

func TestCollector_SetPipelineDepth(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.SetPipelineDepth(3, 7)

	assert.InDelta(t, 3, testutil.ToFloat64(collector.pipelineActive), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(collector.pipelinePending), 0)
}

func TestCollector_SetBackendReady(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.SetBackendReady(false)
	assert.InDelta(t, 0, testutil.ToFloat64(collector.backendReady), 0)

	collector.SetBackendReady(true)
	assert.InDelta(t, 1, testutil.ToFloat64(collector.backendReady), 0)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			collector.RecordHTTPRequest("POST", "/fiber/challenge", 200, 100*time.Millisecond)
			collector.RecordBackendRequest("vllm", "success", 500*time.Millisecond, 100, 50)
			collector.RecordHandshake("established")
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	httpCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, httpCount, 0)

	backendCount := testutil.CollectAndCount(collector.backendRequestsTotal)
	assert.Greater(t, backendCount, 0)

	handshakeCount := testutil.CollectAndCount(collector.handshakeTotal)
	assert.Greater(t, handshakeCount, 0)
}

func TestCollector_MetricsRegistration(t *testing.T) {
	logger := zap.NewNop()

	registry := prometheus.NewRegistry()
	collector := NewCollector(nextTestNamespace(), logger)

	registry.MustRegister(collector.httpRequestsTotal)
	registry.MustRegister(collector.httpRequestDuration)

	collector.RecordHTTPRequest("GET", "/availability", 200, 100*time.Millisecond)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)
}
