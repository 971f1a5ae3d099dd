// Command server runs the ColdVox engine standalone: capture, VAD, STT,
// and text injection wired end-to-end, with no GUI shell (spec §1 places
// the shell, CLI parsing, and hotkey plumbing out of scope; this binary is
// the minimal host that exercises the core pipeline).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coldvox/engine/internal/config"
	"github.com/coldvox/engine/internal/orchestrator"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}

	engine, err := orchestrator.New(cfg)
	if err != nil {
		slog.Error("failed to construct engine", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		slog.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()
	engine.Stop()
	slog.Info("shutdown complete")
}

// loadConfig honors COLDVOX_CONFIG_PATH for a declarative YAML record
// (spec §6); otherwise it builds a Config from environment variables
// layered over production-safe defaults.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("COLDVOX_CONFIG_PATH"); path != "" {
		return config.LoadYAML(path)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
