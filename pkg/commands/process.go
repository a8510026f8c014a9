package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func processCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "process-uploads",
		Short: "Run one scheduler pass over the upload queue and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			summary := a.scheduler.RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "queued=%d claimed=%d treated=%d duplicates=%d failed=%d\n",
				summary.Queued, summary.Claimed, summary.Treated, summary.Duplicates, summary.Failed)
			if summary.Aborted {
				return fmt.Errorf("scheduler pass aborted: an upload state change could not be recorded")
			}
			return nil
		},
	}
}
