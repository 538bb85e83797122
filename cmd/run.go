package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/upload-runner/internal/app"
	"github.com/JakeFAU/upload-runner/internal/config"
	"github.com/JakeFAU/upload-runner/internal/logging"
)

// appOptions lets tests isolate metric registration.
var appOptions = app.Options{}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process jobs from stdin until end of input",
		Long: `Reads jobs from stdin until EOF or SIGINT/SIGTERM. On a signal, intake
stops and files already queued or in flight are allowed to finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, opts)
		},
	}
}

func runSession(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := app.New(cfg, logger, cmd.OutOrStdout(), appOptions)
	if err != nil {
		return fmt.Errorf("init runner: %w", err)
	}
	if err := runner.Run(ctx, cmd.InOrStdin()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("runner failed", zap.Error(err))
		return err
	}
	logger.Info("runner finished")
	return nil
}

// loadConfig layers explicitly set flags over the file and environment.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Runner.Workers = opts.workers
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if flags.Changed("dump-dir") {
		cfg.Debug.DumpDir = opts.dumpDir
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
