package backend

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/loosh-ai/miner-core/apierr"
	"github.com/loosh-ai/miner-core/config"
)

// constructor builds an Adapter from backend config.
type constructor func(cfg config.BackendConfig, logger *zap.Logger) Adapter

// builtins is the fixed constructor table: the miner talks to exactly
// three self-hosted, OpenAI-protocol-compatible servers.
var builtins = map[string]constructor{
	"vllm":     newVLLM,
	"ollama":   newOllama,
	"llamacpp": newLlamaCPP,
}

// Registry holds the constructed adapters available to this node.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	resolved string
}

// NewRegistry constructs every built-in adapter and resolves which one
// serves requests. In test mode it registers only the canned adapter.
// Outside test mode, if the configured kind is not one of the built-in
// names, the first registered backend in name order is used instead,
// with a warning logged. The built-in constructors have no failure
// path, so no adapter is ever excluded at construction.
func NewRegistry(cfg *config.Config, logger *zap.Logger) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter)}

	if cfg.TestMode {
		r.adapters["testmode"] = newTestAdapter(cfg.Backend.DefaultModel)
		r.resolved = "testmode"
		return r, nil
	}

	for name, ctor := range builtins {
		r.adapters[name] = ctor(cfg.Backend, logger)
	}

	if _, ok := r.adapters[cfg.Backend.Kind]; ok {
		r.resolved = cfg.Backend.Kind
		return r, nil
	}

	names := r.names()
	if len(names) == 0 {
		return nil, apierr.New(apierr.NoBackendAvailable, "no backend adapters could be constructed")
	}
	logger.Warn("backend: configured backend not available, falling back to first available",
		zap.String("configured", cfg.Backend.Kind),
		zap.String("fallback", names[0]))
	r.resolved = names[0]
	return r, nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the adapter that serves requests.
func (r *Registry) Resolve() (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[r.resolved]
	if !ok {
		return nil, apierr.New(apierr.NoBackendAvailable, fmt.Sprintf("resolved backend %q not registered", r.resolved))
	}
	return a, nil
}

// List returns the sorted names of all constructed adapters.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}
