// ABOUTME: Root Cobra command and global flags for the affinity CLI.
// ABOUTME: Sets up lifecycle hooks for config loading and engine initialization.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389-research/affinity/internal/config"
	"github.com/2389-research/affinity/internal/embeddings"
	"github.com/2389-research/affinity/internal/engine"
	"github.com/2389-research/affinity/internal/logging"
	"github.com/2389-research/affinity/internal/ranking"
	"github.com/2389-research/affinity/internal/storage"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var globalConfig *config.Config
var globalLogger *slog.Logger
var globalStore storage.EntryStore
var globalEngine *engine.Engine

// Flags
var (
	backendFlag  string
	providerFlag string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:     "affinity",
	Short:   "Rank short texts by semantic similarity",
	Version: version,
	Long: `
 █████╗ ███████╗███████╗██╗███╗   ██╗██╗████████╗██╗   ██╗
██╔══██╗██╔════╝██╔════╝██║████╗  ██║██║╚══██╔══╝╚██╗ ██╔╝
███████║█████╗  █████╗  ██║██╔██╗ ██║██║   ██║    ╚████╔╝
██╔══██║██╔══╝  ██╔══╝  ██║██║╚██╗██║██║   ██║     ╚██╔╝
██║  ██║██║     ██║     ██║██║ ╚████║██║   ██║      ██║
╚═╝  ╚═╝╚═╝     ╚═╝     ╚═╝╚═╝  ╚═══╝╚═╝   ╚═╝      ╚═╝

"I am <who> and I love <what>" - then see who is most like you.
Entries are embedded once and ranked by cosine similarity.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "setup" {
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyFlags(cmd, cfg)
		cfg.Resolve()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		globalConfig = cfg

		// stdout belongs to MCP in stdio mode, so logs always go to stderr.
		globalLogger = logging.New(cfg.Log.Level, os.Stderr)

		eng, store, err := openEngine(cmd.Context(), cfg, globalLogger)
		if err != nil {
			return err
		}
		globalStore = store
		globalEngine = eng
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		closeStore()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Storage backend: memory, sqlite, postgres, or markdown")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "Embeddings provider: hash, huggingface, or openai")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, or error")
}

// applyFlags overrides config values with explicitly set persistent flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Storage.Backend = backendFlag
	}
	if flags.Changed("provider") {
		cfg.Embeddings.Provider = providerFlag
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevelFlag
	}
}

// openEngine wires provider, backend, store and ranker from cfg.
func openEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Engine, storage.EntryStore, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	provider, err := embeddings.New(cfg.Embeddings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embeddings provider: %w", err)
	}

	backend, err := storage.OpenBackend(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s backend: %w", cfg.Storage.Backend, err)
	}

	store, err := storage.NewStore(ctx, provider, backend, storage.WithLogger(logger))
	if err != nil {
		if backend != nil {
			_ = backend.Close()
		}
		return nil, nil, fmt.Errorf("failed to open entry store: %w", err)
	}

	metric, err := ranking.MetricByName(cfg.Ranking.Metric)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	logger.Debug("engine ready",
		"provider", cfg.Embeddings.Provider,
		"model", provider.Model(),
		"dimension", provider.Dimension(),
		"backend", cfg.Storage.Backend,
		"metric", metric.Name(),
	)

	return engine.New(store, ranking.NewRanker(metric), engine.WithLogger(logger)), store, nil
}

func closeStore() {
	if globalStore != nil {
		if err := globalStore.Close(); err != nil && globalLogger != nil {
			globalLogger.Warn("failed to close store", "error", err)
		}
		globalStore = nil
	}
	globalEngine = nil
}
