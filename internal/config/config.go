// Package config provides configuration loading for memscope.
//
// Configuration is read from an optional YAML file and the process
// environment via koanf. The conventional provider variables
// (OPENAI_API_KEY, GOOGLE_API_KEY, GEMINI_MODEL, ...) map directly onto
// config sections, so no memscope-specific prefix is needed.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default model names per backend.
const (
	DefaultOpenAIModel    = "gpt-4.1-mini"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// Config holds the complete memscope configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Google    GoogleConfig    `koanf:"google"`
	Gemini    GeminiConfig    `koanf:"gemini"`
	Anthropic AnthropicConfig `koanf:"anthropic"`
	Memory    MemoryConfig    `koanf:"memory"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`

	// LegacyPort is the bare PORT variable honoured by older deployments.
	LegacyPort int `koanf:"port"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// SessionSecret signs the session cookie. A random secret is generated
	// at startup when unset, which invalidates sessions across restarts.
	SessionSecret Secret `koanf:"session_secret"`
	// RateLimit is the per-client request rate (requests/second). Zero disables it.
	RateLimit float64 `koanf:"rate_limit"`
}

// OpenAIConfig holds OpenAI credentials and model defaults.
type OpenAIConfig struct {
	APIKey  Secret `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// GoogleConfig holds the Google API credential used by the Gemini backend.
type GoogleConfig struct {
	APIKey Secret `koanf:"api_key"`
}

// GeminiConfig holds Gemini model defaults.
type GeminiConfig struct {
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// AnthropicConfig holds Anthropic credentials and model defaults.
type AnthropicConfig struct {
	APIKey  Secret `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// MemoryConfig configures the memory engine and entity attribution.
type MemoryConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`

	// EntityID and ProcessID attribute CLI and quickstart runs.
	EntityID  string `koanf:"entity_id"`
	ProcessID string `koanf:"process_id"`
	// WebProcessID attributes turns served over HTTP.
	WebProcessID string `koanf:"web_process_id"`

	// BarrierTimeout bounds the augmentation wait. Zero waits indefinitely.
	BarrierTimeout Duration `koanf:"barrier_timeout"`

	// Embedder selects the embedding function: hash, openai or ollama.
	Embedder       string  `koanf:"embedder"`
	EmbeddingModel string  `koanf:"embedding_model"`
	OllamaURL      string  `koanf:"ollama_url"`
	RecallLimit    int     `koanf:"recall_limit"`
	MinSimilarity  float64 `koanf:"min_similarity"`
	QueueSize      int     `koanf:"queue_size"`
	// DisableScrub stores extracted memories without secret redaction.
	DisableScrub bool `koanf:"disable_scrub"`
}

// LoggingConfig holds the subset of logging options exposed through config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry trace export options.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"`
	Insecure   bool    `koanf:"insecure"`
	// SampleRate is nil when unset; an explicit 0 disables sampling.
	SampleRate *float64 `koanf:"sample_rate"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Provider credentials are deliberately not checked here; a missing key
// only matters when that backend is selected for a turn.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit cannot be negative"))
	}

	switch strings.ToLower(c.Memory.Embedder) {
	case "hash", "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown memory embedder %q (want hash, openai or ollama)", c.Memory.Embedder))
	}
	if c.Memory.EntityID == "" {
		errs = append(errs, fmt.Errorf("memory entity_id is required"))
	}
	if c.Memory.ProcessID == "" || c.Memory.WebProcessID == "" {
		errs = append(errs, fmt.Errorf("memory process ids are required"))
	}
	if c.Memory.RecallLimit <= 0 {
		errs = append(errs, fmt.Errorf("memory recall_limit must be positive"))
	}
	if c.Memory.MinSimilarity < -1 || c.Memory.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("memory min_similarity must be between -1 and 1"))
	}

	if r := c.Telemetry.SampleRate; r != nil && (*r < 0 || *r > 1) {
		errs = append(errs, fmt.Errorf("telemetry sample_rate must be between 0 and 1"))
	}

	return errors.Join(errs...)
}

// AvailableBackends lists the backends whose credential is configured.
func (c *Config) AvailableBackends() []string {
	var out []string
	if c.OpenAI.APIKey.IsSet() {
		out = append(out, "openai")
	}
	if c.Google.APIKey.IsSet() {
		out = append(out, "gemini")
	}
	if c.Anthropic.APIKey.IsSet() {
		out = append(out, "anthropic")
	}
	return out
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = cfg.LegacyPort
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5001
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = DefaultOpenAIModel
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = DefaultGeminiModel
	}
	if cfg.Anthropic.Model == "" {
		cfg.Anthropic.Model = DefaultAnthropicModel
	}

	if cfg.Memory.Path == "" {
		cfg.Memory.Path = "~/.local/share/memscope/memories"
	}
	if cfg.Memory.EntityID == "" {
		cfg.Memory.EntityID = "demo-entity"
	}
	if cfg.Memory.ProcessID == "" {
		cfg.Memory.ProcessID = "demo-cli"
	}
	if cfg.Memory.WebProcessID == "" {
		cfg.Memory.WebProcessID = "web-demo"
	}
	if cfg.Memory.Embedder == "" {
		cfg.Memory.Embedder = "hash"
	}
	if cfg.Memory.RecallLimit == 0 {
		cfg.Memory.RecallLimit = 5
	}
	if cfg.Memory.MinSimilarity == 0 {
		cfg.Memory.MinSimilarity = 0.2
	}
	if cfg.Memory.QueueSize == 0 {
		cfg.Memory.QueueSize = 256
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == nil {
		rate := 1.0
		cfg.Telemetry.SampleRate = &rate
	}
}
