// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main is the miner node's executable entry point.

# Overview

cmd/miner starts a participant node in the inference marketplace: it
generates an RSA identity, brings up the MLTS session layer,
resolves a backend adapter, opens the readiness gate once the backend
answers health checks, and serves the public fiber HTTP surface
(public-key, key-exchange, challenge, availability) behind a bounded
admission pipeline. A second, unauthenticated port exposes Prometheus
metrics.

# Core types

  - Server      — owns every long-lived component and both HTTP listeners
  - Middleware  — func(http.Handler) http.Handler, composed via Chain

# Capabilities

  - Subcommands: serve, version, health
  - Middleware chain: Recovery, RequestID, SecurityHeaders, metrics
    recording, request logging
  - Graceful shutdown: signal → stop HTTP → cancel workers → stop
    metrics → wait
  - Build-time version injection via ldflags
*/
package main
