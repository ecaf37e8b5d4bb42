package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"markov-persona/chainstore"
	"markov-persona/config"
	"markov-persona/persona"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "markov-persona",
	Short: "Train and query per-user Markov chains",
	Long: `markov-persona keeps one Markov chain per user, trained on that user's
messages, and generates replies that read like the user wrote them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		config.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.yaml in ., .., ./config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.AddCommand(trainCmd, respondCmd, inspectCmd)
}

// setup loads configuration and builds the configured logger.
func setup() error {
	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info", "console")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg = config.Load(tempLogger, cfgFile)
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Re-initialize logger with configured level
	logger, err = config.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to re-initialize logger with configured level: %w", err)
	}
	return nil
}

// newService wires the chain store and the persona service from the loaded
// configuration. The returned func releases store connections.
func newService(ctx context.Context) (*persona.Service, func(), error) {
	store, err := chainstore.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build chain store: %w", err)
	}
	svc, err := persona.NewService(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	closer := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close chain store", zap.Error(err))
		}
	}
	return svc, closer, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
