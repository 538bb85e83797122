// Package cmd defines the upload-runner command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	configFile  string
	workers     int
	metricsAddr string
	dumpDir     string
}

// newRootCmd builds the command tree. The root command runs a session when
// no subcommand is given.
func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "upload-runner",
		Short: "Runs declarative multi-step HTTP upload sessions",
		Long: `upload-runner reads upload jobs as JSON lines on stdin, performs each
job's request chain and multipart upload with a bounded worker pool, and
writes one JSON progress event per line to stdout. Logs go to stderr.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	flags.IntVar(&opts.workers, "workers", 0, "number of concurrent upload workers (default from config, 8)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and health checks on this address")
	flags.StringVar(&opts.dumpDir, "dump-dir", "", "write every HTTP exchange under this directory")

	cmd.AddCommand(newRunCmd(opts))
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "upload-runner:", err)
		os.Exit(1)
	}
}
