package backend

import (
	"go.uber.org/zap"

	"github.com/loosh-ai/miner-core/config"
)

// newVLLM constructs an adapter for a vLLM OpenAI-compatible server.
func newVLLM(cfg config.BackendConfig, logger *zap.Logger) Adapter {
	return newHTTPAdapter(httpAdapterConfig{
		name:         "vllm",
		baseURL:      cfg.VLLMAPIBase,
		apiKey:       orDefault(cfg.VLLMAPIKey, "EMPTY"),
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		topP:         cfg.TopP,
		timeout:      cfg.RequestTimeout,
	}, logger)
}

// newOllama constructs an adapter for an Ollama OpenAI-compatible
// endpoint (Ollama serves /v1/chat/completions alongside its native API).
func newOllama(cfg config.BackendConfig, logger *zap.Logger) Adapter {
	return newHTTPAdapter(httpAdapterConfig{
		name:         "ollama",
		baseURL:      cfg.OllamaAPIBase,
		apiKey:       orDefault(cfg.OllamaAPIKey, "EMPTY"),
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		topP:         cfg.TopP,
		timeout:      cfg.RequestTimeout,
	}, logger)
}

// newLlamaCPP constructs an adapter for a llama.cpp server's
// OpenAI-compatible HTTP front end.
func newLlamaCPP(cfg config.BackendConfig, logger *zap.Logger) Adapter {
	return newHTTPAdapter(httpAdapterConfig{
		name:         "llamacpp",
		baseURL:      cfg.LlamaCPPAPIBase,
		apiKey:       orDefault(cfg.LlamaCPPAPIKey, "EMPTY"),
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		topP:         cfg.TopP,
		timeout:      cfg.RequestTimeout,
	}, logger)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
