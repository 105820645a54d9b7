// =============================================================================
// 📦 Miner 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("MINER").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config is the miner's complete configuration structure.
type Config struct {
	// Server holds HTTP listener settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Backend selects and configures the LLM backend adapter.
	Backend BackendConfig `yaml:"backend" env:"BACKEND"`

	// MLTS holds session-layer (handshake/crypto) settings.
	MLTS MLTSConfig `yaml:"mlts" env:"MLTS"`

	// Pipeline holds admission-pipeline sizing.
	Pipeline PipelineConfig `yaml:"pipeline" env:"PIPELINE"`

	// Identity carries opaque passthrough fields the CORE does not
	// interpret (wallet/hotkey names), preserved for the boot layer.
	Identity IdentityConfig `yaml:"identity" env:"IDENTITY"`

	// Log configures the zap logger.
	Log LogConfig `yaml:"log" env:"LOG"`

	// TestMode, when true, replaces the backend with the canned
	// in-process adapter so the node can run without a live LLM server.
	TestMode bool `yaml:"test_mode" env:"TEST_MODE"`
}

// ServerConfig configures the public HTTP surface.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// BackendConfig selects which LLM backend adapter to construct and how
// to reach it. Each backend has its own base URL and bearer token —
// vllm, ollama and llamacpp are distinct upstream servers and are
// never assumed to share an endpoint.
type BackendConfig struct {
	// Kind is one of "vllm", "ollama", "llamacpp".
	Kind string `yaml:"kind" env:"KIND"`

	// VLLMAPIBase/VLLMAPIKey configure the vllm adapter.
	VLLMAPIBase string `yaml:"vllm_api_base" env:"VLLM_API_BASE"`
	VLLMAPIKey  string `yaml:"vllm_api_key" env:"VLLM_API_KEY"`

	// OllamaAPIBase/OllamaAPIKey configure the ollama adapter.
	OllamaAPIBase string `yaml:"ollama_api_base" env:"OLLAMA_API_BASE"`
	OllamaAPIKey  string `yaml:"ollama_api_key" env:"OLLAMA_API_KEY"`

	// LlamaCPPAPIBase/LlamaCPPAPIKey configure the llamacpp adapter.
	LlamaCPPAPIBase string `yaml:"llamacpp_api_base" env:"LLAMACPP_API_BASE"`
	LlamaCPPAPIKey  string `yaml:"llamacpp_api_key" env:"LLAMACPP_API_KEY"`

	// DefaultModel is substituted for whatever model name the peer
	// requests; peers cannot pick the model.
	DefaultModel string `yaml:"default_model" env:"DEFAULT_MODEL"`
	// MaxTokens bounds completion length when the peer does not set one.
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// Temperature and TopP are the sampling defaults.
	Temperature    float64       `yaml:"temperature" env:"TEMPERATURE"`
	TopP           float64       `yaml:"top_p" env:"TOP_P"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// MLTSConfig configures the RSA/symmetric session layer.
type MLTSConfig struct {
	// KeyTTL is how long an exchanged symmetric key remains valid.
	KeyTTL time.Duration `yaml:"key_ttl" env:"KEY_TTL"`
	// HandshakeTimeout is the window a handshake nonce is remembered
	// for replay rejection: nonce checking happens only at handshake
	// time.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
	// RSAKeyBits sizes the node's identity keypair.
	RSAKeyBits int `yaml:"rsa_key_bits" env:"RSA_KEY_BITS"`
}

// PipelineConfig sizes the admission pipeline.
type PipelineConfig struct {
	// MaxConcurrentRequests is the semaphore size (N).
	MaxConcurrentRequests int `yaml:"max_concurrent_requests" env:"MAX_CONCURRENT_REQUESTS"`
	// MaxPending is an advisory FIFO queue depth: submissions beyond it
	// are still queued, with a warning logged; 0 disables the warning.
	MaxPending int `yaml:"max_pending" env:"MAX_PENDING"`
}

// IdentityConfig carries node-identity fields the CORE treats as
// opaque strings (no chain/registration logic lives here). Address is
// the node's stable public address, echoed back to peers on the
// challenge response; how it is derived from the keystore is outside
// the CORE's scope.
type IdentityConfig struct {
	WalletName string `yaml:"wallet_name" env:"WALLET_NAME"`
	HotkeyName string `yaml:"hotkey_name" env:"HOTKEY_NAME"`
	Address    string `yaml:"address" env:"ADDRESS"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level        string `yaml:"level" env:"LEVEL"`
	Format       string `yaml:"format" env:"FORMAT"`
	EnableCaller bool   `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader is a builder-style config loader.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the default env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "MINER",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a config validator run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads config with priority: defaults → YAML file → env vars.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad loads config, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks invariants the boot sequence depends on.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "invalid server port")
	}
	if c.Pipeline.MaxConcurrentRequests <= 0 {
		errs = append(errs, "pipeline.max_concurrent_requests must be positive")
	}
	if c.MLTS.KeyTTL <= 0 {
		errs = append(errs, "mlts.key_ttl must be positive")
	}
	if !c.TestMode {
		switch c.Backend.Kind {
		case "vllm", "ollama", "llamacpp":
		default:
			errs = append(errs, fmt.Sprintf("unknown backend.kind %q", c.Backend.Kind))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
