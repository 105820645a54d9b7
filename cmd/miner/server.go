package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/loosh-ai/miner-core/api/handlers"
	"github.com/loosh-ai/miner-core/backend"
	"github.com/loosh-ai/miner-core/config"
	"github.com/loosh-ai/miner-core/internal/metrics"
	internalserver "github.com/loosh-ai/miner-core/internal/server"
	"github.com/loosh-ai/miner-core/mlts"
	"github.com/loosh-ai/miner-core/pipeline"
	"github.com/loosh-ai/miner-core/readiness"
)

// Server wires together the session layer, the backend registry, the
// readiness gate and the admission pipeline behind two HTTP listeners:
// the public fiber surface and a separate metrics port.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	identity *mlts.Identity
	session  *mlts.Server
	registry *backend.Registry
	gate     *readiness.Gate
	pipe     *pipeline.Pipeline

	httpManager    *internalserver.Manager
	metricsManager *internalserver.Manager
	metrics        *metrics.Collector

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// NewServer builds the miner's runtime from config, without starting
// any network listeners.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	identity, err := mlts.NewIdentity(cfg.MLTS.RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}

	registry, err := backend.NewRegistry(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init backend registry: %w", err)
	}
	adapter, err := registry.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve backend: %w", err)
	}

	// The replay window a handshake nonce is remembered for is the
	// handshake timeout itself (fiber_handshake_timeout_seconds), per
	// the config table: nonce replay checking happens only at
	// handshake time, never at decrypt time.
	session := mlts.NewServer(identity, cfg.MLTS.KeyTTL, cfg.MLTS.HandshakeTimeout, nil, logger)

	pipe := pipeline.New(pipeline.Config{
		MaxConcurrent: cfg.Pipeline.MaxConcurrentRequests,
		MaxPending:    cfg.Pipeline.MaxPending,
	}, session, adapter, logger)

	runCtx, runCancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		identity:  identity,
		session:   session,
		registry:  registry,
		gate:      readiness.New(),
		pipe:      pipe,
		metrics:   metrics.NewCollector("miner", logger),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
	return s, nil
}

// Start launches the background workers (reaper, readiness poller,
// pipeline pump) and both HTTP listeners.
func (s *Server) Start() error {
	s.session.StartReaper(s.runCtx)
	readiness.Poll(s.runCtx, s.gate, s.resolvedAdapter(), 5*time.Second, s.logger)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pipe.Run(s.runCtx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportPipelineDepth()
	}()

	if err := s.startHTTPServer(); err != nil {
		return err
	}
	if err := s.startMetricsServer(); err != nil {
		return err
	}
	return nil
}

func (s *Server) resolvedAdapter() backend.Adapter {
	adapter, err := s.registry.Resolve()
	if err != nil {
		s.logger.Error("no resolved backend for readiness poll", zap.Error(err))
		return nil
	}
	return adapter
}

// reportPipelineDepth feeds the pipeline's active/pending counts into
// the metrics gauges until the run context is cancelled.
func (s *Server) reportPipelineDepth() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.runCtx.Done():
			return
		case <-ticker.C:
			s.metrics.SetPipelineDepth(s.pipe.Active(), s.pipe.Pending())
			s.metrics.SetBackendReady(s.gate.Ready())
		}
	}
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	fiber := handlers.NewFiber(s.session, s.pipe, s.gate, s.cfg.Identity.Address, s.logger)
	fiber.Register(mux)

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		MetricsMiddleware(s.metrics),
		RequestLogger(s.logger),
	)

	serverConfig := internalserver.Config{
		Addr:            fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = internalserver.NewManager(handler, serverConfig, s.logger)
	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := internalserver.Config{
		Addr:            fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.MetricsPort),
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 5 * time.Second,
	}

	s.metricsManager = internalserver.NewManager(mux, serverConfig, s.logger)
	return s.metricsManager.Start()
}

// WaitForShutdown blocks until SIGINT/SIGTERM (or an asynchronous
// server error), then shuts everything down.
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.Shutdown()
}

// Shutdown stops the background workers and the metrics listener,
// waiting for in-flight challenges to drain. The fiber listener is not
// stopped here; WaitForShutdown stops it before calling Shutdown.
func (s *Server) Shutdown() {
	s.runCancel()
	s.session.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown failed", zap.Error(err))
		}
	}

	s.wg.Wait()
	s.logger.Info("miner stopped")
}
