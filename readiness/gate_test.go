package readiness

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/loosh-ai/miner-core/backend"
)

type fakeAdapter struct {
	healthy atomic.Bool
}

func (a *fakeAdapter) Name() string { return "fake" }
func (a *fakeAdapter) ChatCompletion(ctx context.Context, req backend.ChallengeEnvelope) (*backend.InferenceResult, error) {
	return nil, nil
}
func (a *fakeAdapter) HealthCheck(ctx context.Context) (*backend.HealthStatus, error) {
	return &backend.HealthStatus{Healthy: a.healthy.Load()}, nil
}

func TestGate_StartsNotReady(t *testing.T) {
	g := New()
	assert.False(t, g.Ready())
}

func TestGate_BecomesReadyOnceBackendHealthy(t *testing.T) {
	adapter := &fakeAdapter{}
	g := New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Poll(ctx, g, adapter, 10*time.Millisecond, zap.NewNop())

	assert.False(t, g.Ready())
	adapter.healthy.Store(true)

	assert.Eventually(t, g.Ready, time.Second, 5*time.Millisecond)
}

func TestGate_IsMonotonic(t *testing.T) {
	adapter := &fakeAdapter{}
	adapter.healthy.Store(true)
	g := New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Poll(ctx, g, adapter, 10*time.Millisecond, zap.NewNop())

	assert.Eventually(t, g.Ready, time.Second, 5*time.Millisecond)

	adapter.healthy.Store(false)
	time.Sleep(30 * time.Millisecond)
	assert.True(t, g.Ready())
}
