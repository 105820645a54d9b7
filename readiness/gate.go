// Package readiness implements the node's readiness gate: a
// monotonic boolean driven by a background poller that checks the
// backend's health until it reports healthy, then stops polling.
package readiness

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/loosh-ai/miner-core/backend"
)

// Gate exposes whether the node is ready to accept challenges.
type Gate struct {
	ready atomic.Bool
}

// New returns a not-ready gate.
func New() *Gate {
	return &Gate{}
}

// Ready reports the current state.
func (g *Gate) Ready() bool {
	return g.ready.Load()
}

// Poll starts a background poller that calls adapter.HealthCheck
// every interval until it succeeds, then sets the gate ready and
// exits. Once ready, the gate never reverts to not-ready: a later
// backend outage surfaces as BackendError on individual requests, not
// as a readiness flap.
func Poll(ctx context.Context, gate *Gate, adapter backend.Adapter, interval time.Duration, logger *zap.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			status, err := adapter.HealthCheck(ctx)
			if err == nil && status != nil && status.Healthy {
				gate.ready.Store(true)
				logger.Info("readiness: backend healthy, gate open", zap.String("backend", adapter.Name()))
				return
			}
			logger.Debug("readiness: backend not yet healthy", zap.String("backend", adapter.Name()))

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
