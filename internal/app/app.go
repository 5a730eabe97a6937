// Package app assembles memscope's components from configuration. Both
// the daemon and the CLI start here.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memscope/internal/config"
	"github.com/fyrsmithlabs/memscope/internal/logging"
	"github.com/fyrsmithlabs/memscope/internal/memory"
	"github.com/fyrsmithlabs/memscope/internal/orchestrator"
	"github.com/fyrsmithlabs/memscope/internal/provider"
	"github.com/fyrsmithlabs/memscope/internal/scope"
	"github.com/fyrsmithlabs/memscope/internal/secrets"
	"github.com/fyrsmithlabs/memscope/internal/telemetry"
)

// App holds the wired components.
type App struct {
	Config       *config.Config
	Logger       *logging.Logger
	Telemetry    *telemetry.Telemetry
	Gateway      *provider.Gateway
	Orchestrator *orchestrator.Orchestrator
}

// New wires telemetry, the memory store, the provider gateway and the
// orchestrator. Nothing touches the network or the store until the first
// turn.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger, version string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	zl := logger.Underlying()

	tel, err := telemetry.New(ctx, telemetryConfig(cfg, version), zl.Named("telemetry"))
	if err != nil {
		return nil, err
	}

	embed, err := memory.NewEmbedFunc(memory.EmbedSettings{
		Kind:          cfg.Memory.Embedder,
		Model:         cfg.Memory.EmbeddingModel,
		OpenAIKey:     cfg.OpenAI.APIKey.Value(),
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OllamaURL:     cfg.Memory.OllamaURL,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring embedder: %w", err)
	}

	var scrubber secrets.Scrubber = secrets.Noop{}
	if !cfg.Memory.DisableScrub {
		if scrubber, err = secrets.New(nil); err != nil {
			return nil, fmt.Errorf("configuring scrubber: %w", err)
		}
	}

	conns := memory.NewConnFactory(memory.StoreConfig{
		Path:     cfg.Memory.Path,
		Compress: cfg.Memory.Compress,
		Embed:    embed,
	}, zl.Named("memory"))

	engines := scope.MemoryEngines(memory.Options{
		Embed:         embed,
		Scrubber:      scrubber,
		RecallLimit:   cfg.Memory.RecallLimit,
		MinSimilarity: float32(cfg.Memory.MinSimilarity),
		QueueSize:     cfg.Memory.QueueSize,
		Logger:        zl.Named("memory"),
	})

	gateway := provider.NewGateway(provider.SettingsFromConfig(cfg), zl.Named("provider"))

	orch := orchestrator.New(gateway, engines, conns,
		orchestrator.WithLogger(logger.Named("orchestrator")),
		orchestrator.WithTracer(tel.Tracer("memscope.orchestrator")),
		orchestrator.WithWebProcessID(cfg.Memory.WebProcessID),
		orchestrator.WithBarrierTimeout(cfg.Memory.BarrierTimeout.Duration()),
	)

	logger.Debug(ctx, "components wired",
		zap.String("embedder", cfg.Memory.Embedder),
		zap.String("memory_path", cfg.Memory.Path),
		zap.Bool("scrub", scrubber.IsEnabled()),
		zap.Strings("backends", cfg.AvailableBackends()),
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Telemetry:    tel,
		Gateway:      gateway,
		Orchestrator: orch,
	}, nil
}

// Close flushes telemetry and the logger.
func (a *App) Close(ctx context.Context) error {
	err := a.Telemetry.Shutdown(ctx)
	_ = a.Logger.Sync()
	return err
}

func telemetryConfig(cfg *config.Config, version string) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.Endpoint != "" {
		tc.Endpoint = cfg.Telemetry.Endpoint
	}
	if cfg.Telemetry.Protocol != "" {
		tc.Protocol = cfg.Telemetry.Protocol
	}
	tc.Insecure = cfg.Telemetry.Insecure
	if cfg.Telemetry.SampleRate != nil {
		tc.SampleRate = *cfg.Telemetry.SampleRate
	}
	if version != "" {
		tc.ServiceVersion = version
	}
	return tc
}
