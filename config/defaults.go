// =============================================================================
// 📦 Miner 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig returns the default miner configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:   DefaultServerConfig(),
		Backend:  DefaultBackendConfig(),
		MLTS:     DefaultMLTSConfig(),
		Pipeline: DefaultPipelineConfig(),
		Identity: IdentityConfig{},
		Log:      DefaultLogConfig(),
		TestMode: false,
	}
}

// DefaultServerConfig returns the default server config.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8091,
		MetricsPort:     9095,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultBackendConfig returns the default backend config. Every
// backend's API key defaults to the literal "EMPTY": none of the
// three self-hosted servers require a real bearer token, and "EMPTY"
// is the conventional placeholder their OpenAI-compatible clients
// expect rather than an empty string.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Kind:            "vllm",
		VLLMAPIBase:     "http://localhost:8000/v1",
		VLLMAPIKey:      "EMPTY",
		OllamaAPIBase:   "http://localhost:11434/v1",
		OllamaAPIKey:    "EMPTY",
		LlamaCPPAPIBase: "http://localhost:8080/v1",
		LlamaCPPAPIKey:  "EMPTY",
		DefaultModel:    "default",
		MaxTokens:       512,
		Temperature:     0.7,
		TopP:            1.0,
		RequestTimeout:  60 * time.Second,
	}
}

// DefaultMLTSConfig returns the default session-layer config.
func DefaultMLTSConfig() MLTSConfig {
	return MLTSConfig{
		KeyTTL:           30 * time.Minute,
		HandshakeTimeout: 10 * time.Second,
		RSAKeyBits:       2048,
	}
}

// DefaultPipelineConfig returns the default admission-pipeline config.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxConcurrentRequests: 4,
		MaxPending:            0,
	}
}

// DefaultLogConfig returns the default log config.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "console",
		EnableCaller: true,
	}
}
