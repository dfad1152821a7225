package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentgate-oss/agentgate/internal/backend"
	"github.com/agentgate-oss/agentgate/internal/config"
	"github.com/agentgate-oss/agentgate/internal/engine"
	"github.com/agentgate-oss/agentgate/internal/memory"
	"github.com/agentgate-oss/agentgate/internal/registry"
	"github.com/agentgate-oss/agentgate/internal/schema"
	"github.com/agentgate-oss/agentgate/internal/server"
	"github.com/agentgate-oss/agentgate/internal/telemetry"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	Long:  `Start the HTTP server exposing invocation, registry, and session endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind to (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}

	logger := telemetry.NewLogger(cfg.Logging.Format, verbose || cfg.Logging.Level == "debug")
	if cfg.Logging.File != "" {
		if err := logger.WithFile(cfg.Logging.File); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
	}

	validator := schema.NewValidator()

	store, err := registry.Open(cfg.Storage.Path, validator)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer store.Close()

	if seeded, err := store.SeedFromPresets(cfg.PresetsDir, logger); err != nil {
		logger.Warn("preset seeding failed", "error", err)
	} else if seeded > 0 {
		logger.Info("seeded agents from presets", "count", seeded, "dir", cfg.PresetsDir)
	}

	sessions, err := memory.NewSQLiteSessionStore(cfg.Storage.SessionPath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()

	metrics := telemetry.NewMetrics()
	eng := engine.New(validator, backend.New(cfg.Backend, logger), sessions, metrics, logger)

	srv := server.New(cfg, eng, store, sessions, metrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return srv.Start(ctx, addr)
}
