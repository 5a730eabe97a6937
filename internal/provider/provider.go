// Package provider routes a prompt to one of several language-model
// backends and normalizes the reply to plain text.
//
// A Handle is built per turn by Gateway.New. Construction checks the
// backend's credential eagerly, so a misconfigured backend fails before any
// network traffic.
package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memscope/internal/config"
)

// Backend names a model provider.
type Backend string

const (
	BackendOpenAI    Backend = "openai"
	BackendGemini    Backend = "gemini"
	BackendAnthropic Backend = "anthropic"
)

// Backends lists the supported backends in display order.
var Backends = []Backend{BackendOpenAI, BackendGemini, BackendAnthropic}

// ParseBackend normalizes a backend name. "google" is accepted for Gemini.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		return BackendOpenAI, nil
	case "gemini", "google":
		return BackendGemini, nil
	case "anthropic", "claude":
		return BackendAnthropic, nil
	}
	return "", &ConfigurationError{Backend: name, Reason: "unsupported backend (want openai, gemini or anthropic)"}
}

// Handle is a live client bound to one backend and one resolved model.
// The set of implementations is closed: *OpenAI, *Gemini and *Anthropic.
type Handle interface {
	Backend() Backend
	Model() string
	// Generate sends prompt as a single user message and returns the
	// reply text.
	Generate(ctx context.Context, prompt string) (string, error)

	sealed()
}

// Settings carries credentials, default models and endpoints per backend.
type Settings struct {
	OpenAIKey    string
	GoogleKey    string
	AnthropicKey string

	OpenAIModel    string
	GeminiModel    string
	AnthropicModel string

	// Base URLs; empty means the public endpoint.
	OpenAIBaseURL    string
	GeminiBaseURL    string
	AnthropicBaseURL string

	Timeout    time.Duration
	HTTPClient *http.Client
}

// SettingsFromConfig extracts provider settings from the application config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		OpenAIKey:        cfg.OpenAI.APIKey.Value(),
		GoogleKey:        cfg.Google.APIKey.Value(),
		AnthropicKey:     cfg.Anthropic.APIKey.Value(),
		OpenAIModel:      cfg.OpenAI.Model,
		GeminiModel:      cfg.Gemini.Model,
		AnthropicModel:   cfg.Anthropic.Model,
		OpenAIBaseURL:    cfg.OpenAI.BaseURL,
		GeminiBaseURL:    cfg.Gemini.BaseURL,
		AnthropicBaseURL: cfg.Anthropic.BaseURL,
	}
}

// Gateway builds handles from Settings.
type Gateway struct {
	settings Settings
	client   *http.Client
	logger   *zap.Logger
}

// NewGateway creates a gateway. Missing default models fall back to the
// package defaults; credentials are checked per handle.
func NewGateway(s Settings, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.OpenAIModel == "" {
		s.OpenAIModel = config.DefaultOpenAIModel
	}
	if s.GeminiModel == "" {
		s.GeminiModel = config.DefaultGeminiModel
	}
	if s.AnthropicModel == "" {
		s.AnthropicModel = config.DefaultAnthropicModel
	}
	if s.Timeout == 0 {
		s.Timeout = 2 * time.Minute
	}

	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: s.Timeout}
	}

	return &Gateway{settings: s, client: client, logger: logger}
}

// DefaultModel returns the configured model for b.
func (g *Gateway) DefaultModel(b Backend) string {
	switch b {
	case BackendOpenAI:
		return g.settings.OpenAIModel
	case BackendGemini:
		return g.settings.GeminiModel
	case BackendAnthropic:
		return g.settings.AnthropicModel
	}
	return ""
}

// Available reports whether b has a credential configured.
func (g *Gateway) Available(b Backend) bool {
	switch b {
	case BackendOpenAI:
		return g.settings.OpenAIKey != ""
	case BackendGemini:
		return g.settings.GoogleKey != ""
	case BackendAnthropic:
		return g.settings.AnthropicKey != ""
	}
	return false
}

// New returns a handle for backend. A non-empty modelOverride wins over the
// configured default.
func (g *Gateway) New(backend, modelOverride string) (Handle, error) {
	b, err := ParseBackend(backend)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(modelOverride)
	if model == "" {
		model = g.DefaultModel(b)
	}
	log := g.logger.With(zap.String("backend", string(b)), zap.String("model", model))

	switch b {
	case BackendOpenAI:
		if g.settings.OpenAIKey == "" {
			return nil, &ConfigurationError{Backend: string(b), Credential: "OPENAI_API_KEY"}
		}
		return newOpenAI(g.settings.OpenAIBaseURL, g.settings.OpenAIKey, model, g.client, log), nil
	case BackendGemini:
		if g.settings.GoogleKey == "" {
			return nil, &ConfigurationError{Backend: string(b), Credential: "GOOGLE_API_KEY"}
		}
		return newGemini(g.settings.GeminiBaseURL, g.settings.GoogleKey, model, g.client, log), nil
	default:
		if g.settings.AnthropicKey == "" {
			return nil, &ConfigurationError{Backend: string(b), Credential: "ANTHROPIC_API_KEY"}
		}
		return newAnthropic(g.settings.AnthropicBaseURL, g.settings.AnthropicKey, model, g.client, log), nil
	}
}
