package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/infrastructure/config"
	"github.com/erp/shipcheck/internal/infrastructure/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type cli struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "shipcheck",
		Short:         "Reconcile console shipping orders with the ledger and the fulfillment provider",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log, err := logger.New(&logger.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: cfg.Log.Output,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.cfg = cfg
			c.log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = logger.Sync(c.log)
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a TOML config file (default: config.toml in ., /app or /etc/shipcheck)")

	root.AddCommand(
		newRunCommand(c),
		newServeCommand(c),
		newHistoryCommand(c),
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "shipcheck:", err)
		if errors.Is(err, config.ErrMissingRunSettings) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
