// Memscoped serves memscope's chat API over HTTP.
//
// Configuration is read from ~/.config/memscope/config.yaml and the
// environment. At least one backend credential must be set.
//
// Usage:
//
//	# Start on the default port (5001)
//	OPENAI_API_KEY=sk-... memscoped
//
//	# Gemini only, custom port
//	GOOGLE_API_KEY=... SERVER_HTTP_PORT=8080 memscoped
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memscope/internal/app"
	"github.com/fyrsmithlabs/memscope/internal/config"
	httpserver "github.com/fyrsmithlabs/memscope/internal/http"
	"github.com/fyrsmithlabs/memscope/internal/logging"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var errNoBackends = errors.New("no backend credentials configured")

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/memscope/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion(os.Stdout)
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  memscoped           Start the memscope HTTP server\n")
			fmt.Fprintf(os.Stderr, "  memscoped version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, os.Stdout); err != nil {
		if !errors.Is(err, errNoBackends) {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "memscoped by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}

// checkBackends refuses to start without any credential and reports which
// backends are usable.
func checkBackends(cfg *config.Config, w io.Writer) error {
	available := cfg.AvailableBackends()
	if len(available) == 0 {
		fmt.Fprintln(w, "Error: Please set at least one API key:")
		fmt.Fprintln(w, "  - OPENAI_API_KEY for OpenAI")
		fmt.Fprintln(w, "  - GOOGLE_API_KEY for Gemini")
		fmt.Fprintln(w, "  - ANTHROPIC_API_KEY for Anthropic")
		fmt.Fprintln(w, "You can set these in your config file or environment variables")
		return errNoBackends
	}

	fmt.Fprintf(w, "OpenAI available: %t\n", slices.Contains(available, "openai"))
	fmt.Fprintf(w, "Gemini available: %t\n", slices.Contains(available, "gemini"))
	fmt.Fprintf(w, "Anthropic available: %t\n", slices.Contains(available, "anthropic"))
	return nil
}

// run starts the server and blocks until ctx is cancelled, then shuts down
// within the configured timeout.
func run(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := checkBackends(cfg, os.Stderr); err != nil {
		return err
	}

	logCfg, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger, version)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	srv, err := httpserver.NewServer(a.Orchestrator, logger.Underlying().Named("http"), &httpserver.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		SessionSecret: []byte(cfg.Server.SessionSecret.Value()),
		RateLimit:     cfg.Server.RateLimit,
		Backends:      cfg.AvailableBackends(),
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	if !cfg.Server.SessionSecret.IsSet() {
		logger.Warn(ctx, "SERVER_SESSION_SECRET not set; sessions will not survive a restart")
	}

	fmt.Fprintf(out, "Starting memscope on http://%s:%d (%s)\n", cfg.Server.Host, cfg.Server.Port, strings.Join(cfg.AvailableBackends(), ", "))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}
