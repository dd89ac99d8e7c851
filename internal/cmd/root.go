// Package cmd implements the jobtracker command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eodrift/jobtracker/internal/config"
	"github.com/eodrift/jobtracker/internal/observability"
)

var (
	cfgFile      string
	logLevel     string
	basicLogging bool

	// cfg is loaded by the persistent pre-run and shared by subcommands.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "jobtracker",
	Short: "Reconcile batch job status from YARN/Kubernetes into the job registries",
	Long: `jobtracker polls the external cluster manager (YARN or Kubernetes) for the
live state of asynchronously running batch jobs, normalizes it into a
canonical status, and reconciles it into the job registries. Jobs reaching a
terminal status are finalized: result metadata is captured, dependency
artifacts are scheduled for cleanup, and billed usage is reported.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if basicLogging {
			cfg.Logging.Basic = true
		}
		return observability.Init(cfg.Logging.Level, cfg.Logging.Basic)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&basicLogging, "basic-logging", false, "Console logs on stderr instead of JSON")
}

// Execute runs the root command.
func Execute() error {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
