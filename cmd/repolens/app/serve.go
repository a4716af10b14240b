package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/repolens/repolens/internal/api"
	"github.com/repolens/repolens/internal/config"
	"github.com/repolens/repolens/internal/gitops"
	mcpserver "github.com/repolens/repolens/internal/mcp"
	"github.com/repolens/repolens/internal/repository"
	"github.com/repolens/repolens/internal/state"
	"github.com/repolens/repolens/internal/tracker"
	"github.com/repolens/repolens/internal/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the repository context server",
	Long: `Start the MCP server. By default it speaks the protocol over
stdin/stdout; --transport http serves the streamable HTTP variant
instead. An optional read-only ops HTTP server (health, version,
repository views) is enabled with httpAddress in the configuration.`,
	RunE: runServe,
}

const (
	transportStdio = "stdio"
	transportHTTP  = "http"

	defaultGracefulTimeout = 10 * time.Second
)

func init() {
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	serveCmd.Flags().String("base-dir", "", "Directory scanned for git repositories")
	serveCmd.Flags().String("state-dir", "", "Directory holding persisted tracking state")
	serveCmd.Flags().String("transport", transportStdio, "MCP transport (stdio or http)")
	serveCmd.Flags().String("address", ":8081", "Listen address for --transport http")

	for _, name := range []string{"config", "base-dir", "state-dir", "transport", "address"} {
		if err := viper.BindPFlag(name, serveCmd.Flags().Lookup(name)); err != nil {
			slog.Error("Failed to bind flag", "flag", name, "error", err)
			os.Exit(1)
		}
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.StateDir, 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	slog.Info("Starting repolens",
		"base_dir", cfg.BaseDir,
		"state_dir", cfg.StateDir,
		"git_timeout", cfg.GitTimeout)

	states := state.NewFileStore(cfg.StateDir)
	workspaces := workspace.NewFileStore(cfg.StateDir, states)
	engine := tracker.NewEngine(states, cfg.MaxTrackedFiles, cfg.TruncateBytes, cfg.ContentRetentionBytes)
	registry := repository.NewRegistry(cfg.BaseDir)
	session := repository.NewSession()
	gitClient := gitops.NewClient(cfg.GitTimeoutDuration())

	srv := mcpserver.NewServer(cfg, registry, session, states, workspaces, engine, gitClient)

	opsServer := startOpsServer(cfg, registry, workspaces)
	defer stopOpsServer(opsServer)

	switch viper.GetString("transport") {
	case transportStdio:
		return srv.ServeStdio()
	case transportHTTP:
		return srv.ServeHTTP(viper.GetString("address"))
	default:
		return fmt.Errorf("unknown transport %q", viper.GetString("transport"))
	}
}

func loadServeConfig() (*config.Config, error) {
	var cfg *config.Config
	if path := viper.GetString("config"); path != "" {
		loaded, err := config.NewLoader().Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	// Flags take precedence over file and environment.
	if s := viper.GetString("base-dir"); s != "" {
		cfg.BaseDir = s
	}
	if s := viper.GetString("state-dir"); s != "" {
		cfg.StateDir = s
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// startOpsServer launches the read-only chi server when configured.
// Returns nil when disabled.
func startOpsServer(cfg *config.Config, registry repository.Registry, workspaces workspace.Store) *http.Server {
	if cfg.HTTPAddress == "" {
		return nil
	}

	server := &http.Server{
		Addr:         cfg.HTTPAddress,
		Handler:      api.NewRouter(registry, workspaces),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		slog.Info("Ops server listening", "address", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Ops server failed", "error", err)
		}
	}()
	return server
}

func stopOpsServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Ops server forced to shut down", "error", err)
	}
}
