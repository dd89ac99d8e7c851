package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eodrift/jobtracker/internal/observability"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Run one status reconciliation pass",
	Long: `Run a single reconciliation pass: read the running jobs from the primary
registry, fetch their live status from the configured cluster manager, and
write the results back.

Example:
  jobtracker track --config jobtracker.yaml
  jobtracker track --config jobtracker.yaml --fail-fast`,
	RunE: runTrack,
}

var trackFailFast bool

func init() {
	rootCmd.AddCommand(trackCmd)

	trackCmd.Flags().BoolVar(&trackFailFast, "fail-fast", false,
		"Abort the pass on the first unexpected per-job failure instead of skipping to the next job")
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := observability.CLILogger

	if trackFailFast {
		cfg.FailFast = true
	}

	deps, err := buildTracker(cfg, nil)
	if err != nil {
		log.Error("Failed to build tracker", zap.Error(err))
		return err
	}
	defer deps.close()

	_, err = deps.tracker.UpdateStatuses(ctx, cfg.FailFast)
	if err != nil {
		log.Error("Tracking pass failed", zap.Error(err))
		return err
	}
	return nil
}
